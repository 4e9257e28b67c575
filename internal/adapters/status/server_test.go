package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/services/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	st orchestrator.Status
}

func (f *fakeSession) Status() orchestrator.Status { return f.st }

type fakeInterfaces struct {
	ifaces []domain.RadioInterface
}

func (f *fakeInterfaces) Snapshot() []domain.RadioInterface { return f.ifaces }

type fakeAttempts struct {
	attempts []domain.AttackAttempt
}

func (f *fakeAttempts) ListAttempts(ctx context.Context, targetID string) ([]domain.AttackAttempt, error) {
	var out []domain.AttackAttempt
	for _, a := range f.attempts {
		if a.TargetID == targetID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]domain.Target
}

func (f *fakeSink) Observe(targets []domain.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, targets)
}

func testServer(t *testing.T) (*httptest.Server, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	session := &fakeSession{st: orchestrator.Status{
		SessionID: "s1",
		StartedAt: time.Now().Add(-time.Minute),
		Counters:  domain.SessionCounters{TargetsDiscovered: 4, TargetsCaptured: 1},
		Targets: []domain.Target{
			{BSSID: "aa:bb:cc:dd:ee:ff", SSID: "corp", State: domain.TargetCaptured},
		},
		Running: 1,
	}}
	ifaces := &fakeInterfaces{ifaces: []domain.RadioInterface{
		{Name: "wlan0", Phy: "phy0", Status: domain.InterfaceLeased},
	}}
	attempts := &fakeAttempts{attempts: []domain.AttackAttempt{
		{ID: "a1", TargetID: "aa:bb:cc:dd:ee:ff", Phase: domain.PhasePMKID, Outcome: domain.OutcomeSuccess},
		{ID: "a2", TargetID: "11:22:33:44:55:66", Phase: domain.PhasePMKID, Outcome: domain.OutcomeFailed},
	}}

	srv := NewServer("127.0.0.1:0", session, ifaces, attempts, sink, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, sink
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	var body map[string]any
	getJSON(t, ts.URL+"/api/status", &body)

	assert.Equal(t, "s1", body["sessionId"])
	assert.Equal(t, float64(1), body["running"])
	assert.Equal(t, float64(1), body["targets"])
}

func TestTargetsEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	var targets []domain.Target
	getJSON(t, ts.URL+"/api/targets", &targets)

	require.Len(t, targets, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", targets[0].BSSID)
}

func TestInterfacesEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	var ifaces []domain.RadioInterface
	getJSON(t, ts.URL+"/api/interfaces", &ifaces)

	require.Len(t, ifaces, 1)
	assert.Equal(t, "wlan0", ifaces[0].Name)
	assert.Equal(t, domain.InterfaceLeased, ifaces[0].Status)
}

func TestAttemptsEndpointFiltersByTarget(t *testing.T) {
	ts, _ := testServer(t)

	var attempts []domain.AttackAttempt
	getJSON(t, ts.URL+"/api/targets/aa:bb:cc:dd:ee:ff/attempts", &attempts)

	require.Len(t, attempts, 1)
	assert.Equal(t, "a1", attempts[0].ID)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestObserveEndpoint(t *testing.T) {
	ts, sink := testServer(t)

	body := `[{"bssid":"de:ad:be:ef:00:01","ssid":"cafe","channel":11,"signal_dbm":-60}]`
	resp, err := http.Post(ts.URL+"/api/targets", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "de:ad:be:ef:00:01", sink.batches[0][0].BSSID)
}

func TestObserveEndpointRejectsGarbage(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/targets", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
