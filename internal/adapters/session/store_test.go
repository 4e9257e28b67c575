package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(sessionID string) domain.SessionSnapshot {
	snap := domain.EmptySnapshot(sessionID, time.Now().Truncate(time.Second))
	snap.Counters.TargetsDiscovered = 3
	snap.Counters.AttacksTotal = 2
	snap.Targets = []domain.Target{
		{
			BSSID:         "aa:bb:cc:dd:ee:ff",
			SSID:          "corp",
			Channel:       6,
			Signal:        -52,
			Security:      domain.SecurityWPA2,
			State:         domain.TargetCooldown,
			Attempts:      1,
			LastAttemptAt: time.Now().Truncate(time.Second),
			CooldownUntil: time.Now().Add(5 * time.Minute).Truncate(time.Second),
		},
		{
			BSSID:    "11:22:33:44:55:66",
			SSID:     "guest",
			State:    domain.TargetCaptured,
			Artifact: "/captures/112233445566.pcapng",
		},
	}
	return snap
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	snap := sampleSnapshot("s1")
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load("s1")
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, loaded.SessionID)
	assert.Equal(t, snap.Counters, loaded.Counters)
	require.Len(t, loaded.Targets, 2)
	assert.Equal(t, snap.Targets[0].CooldownUntil.Unix(), loaded.Targets[0].CooldownUntil.Unix())
	assert.Equal(t, snap.Targets[0].Attempts, loaded.Targets[0].Attempts)
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	snap, err := store.Load("never-saved")
	require.NoError(t, err)
	assert.Equal(t, "never-saved", snap.SessionID)
	assert.Empty(t, snap.Targets)
}

// A crash mid-write leaves a temp file behind; the previously saved
// snapshot must load untouched and temp files never show up in List.
func TestPartialWriteDoesNotCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	snap := sampleSnapshot("s1")
	require.NoError(t, store.Save(snap))

	// Simulated torn write.
	torn := filepath.Join(dir, ".tmp-session-crashed")
	require.NoError(t, os.WriteFile(torn, []byte(`{"version":1,"sess`), 0o600))

	loaded, err := store.Load("s1")
	require.NoError(t, err)
	assert.Len(t, loaded.Targets, 2)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestLoadCorruptReturnsEmptyWithError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"+snapshotSuffix), []byte("not json"), 0o600))

	snap, err := store.Load("bad")
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, snap.Targets, "caller gets a safe empty snapshot alongside the error")
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "future"+snapshotSuffix),
		[]byte(`{"version":99,"sessionId":"future"}`), 0o600))

	_, err = store.Load("future")
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleSnapshot("old")))
	// Push the first file's mtime into the past; sub-second mtime
	// resolution makes back-to-back saves ambiguous.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old"+snapshotSuffix), past, past))
	require.NoError(t, store.Save(sampleSnapshot("new")))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleSnapshot("ancient")))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "ancient"+snapshotSuffix), past, past))
	require.NoError(t, store.Save(sampleSnapshot("current")))

	require.NoError(t, store.Prune(24*time.Hour, 1))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"current"}, ids)
}
