package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"github.com/lcalzada-xor/wpilot/internal/core/services/orchestrator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SessionReader serves point-in-time session state to HTTP handlers.
type SessionReader interface {
	Status() orchestrator.Status
}

// InterfaceReader serves a copy of the scheduler's interface table.
type InterfaceReader interface {
	Snapshot() []domain.RadioInterface
}

// AttemptReader serves the audit trail for one target.
type AttemptReader interface {
	ListAttempts(ctx context.Context, targetID string) ([]domain.AttackAttempt, error)
}

// TargetSink receives scan results pushed by the external scanner.
type TargetSink interface {
	Observe(targets []domain.Target)
}

// Server exposes the read-only operational surface: session status,
// interface table, audit trail, Prometheus metrics and the live event
// feed. It never mutates campaign state.
type Server struct {
	session    SessionReader
	interfaces InterfaceReader
	attempts   AttemptReader
	sink       TargetSink
	ws         *WSManager

	httpServer *http.Server
}

// NewServer wires the read surfaces into an HTTP server on addr.
func NewServer(addr string, session SessionReader, interfaces InterfaceReader, attempts AttemptReader, sink TargetSink, ws *WSManager) *Server {
	s := &Server{
		session:    session,
		interfaces: interfaces,
		attempts:   attempts,
		sink:       sink,
		ws:         ws,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/interfaces", s.handleInterfaces).Methods(http.MethodGet)
	r.HandleFunc("/api/targets", s.handleTargets).Methods(http.MethodGet)
	if sink != nil {
		r.HandleFunc("/api/targets", s.handleObserve).Methods(http.MethodPost)
	}
	r.HandleFunc("/api/targets/{bssid}/attempts", s.handleAttempts).Methods(http.MethodGet)
	r.HandleFunc("/api/host", s.handleHost).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	if ws != nil {
		r.HandleFunc("/ws", ws.HandleWebSocket)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "status-server"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[STATUS] Listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	writeJSON(w, map[string]any{
		"sessionId": st.SessionID,
		"startedAt": st.StartedAt,
		"uptime":    time.Since(st.StartedAt).Round(time.Second).String(),
		"counters":  st.Counters,
		"running":   st.Running,
		"paused":    st.Paused,
		"targets":   len(st.Targets),
	})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Status().Targets)
}

// handleObserve is the scanner intake: an external scanner posts its scan
// results here and they flow into the orchestrator's candidate set.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var targets []domain.Target
	if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
		http.Error(w, "invalid target batch: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.sink.Observe(targets)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.interfaces.Snapshot())
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	bssid := mux.Vars(r)["bssid"]
	attempts, err := s.attempts.ListAttempts(r.Context(), bssid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, attempts)
}

// handleHost reports host vitals, useful when the rig runs headless on
// battery in the field.
func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}

	if vm, err := mem.VirtualMemory(); err == nil {
		out["memoryUsedPercent"] = vm.UsedPercent
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		out["cpuPercent"] = pct[0]
	}
	if info, err := host.Info(); err == nil {
		out["hostname"] = info.Hostname
		out["uptimeSeconds"] = info.Uptime
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[STATUS] Response encode failed: %v", err)
	}
}
