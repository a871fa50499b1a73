// Package monitor serves the state of a running engine over HTTP.
//
//	GET /status          run id, lifecycle state, ticks, virtual time, reason
//	GET /command/latest  the last published command (404 before the first)
//	POST /complete       write the completion signal: {"reason": "..."}
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/jointstream/internal/engine"
	"github.com/roach88/jointstream/internal/ir"
)

// Status is the body of GET /status.
type Status struct {
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Topic     string       `json:"topic"`
	State     engine.State `json:"state"`
	Ticks     int64        `json:"ticks"`
	T         float64      `json:"t"`
	Reason    string       `json:"reason,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Completer writes a run's completion signal. *engine.Engine implements it.
type Completer interface {
	Complete(reason string) error
}

// CompleteRequest is the body of POST /complete.
type CompleteRequest struct {
	Reason string `json:"reason"`
}

// Monitor records engine events and serves them. It is an engine.Observer.
type Monitor struct {
	now func() time.Time

	mu        sync.RWMutex
	status    Status
	latest    *ir.JointCommand
	completer Completer
}

var _ engine.Observer = (*Monitor)(nil)

// New creates a monitor for the run described by spec.
func New(spec ir.TrajectorySpec) *Monitor {
	return &Monitor{
		now: time.Now,
		status: Status{
			Name:  spec.Name,
			Topic: spec.Topic,
			State: engine.StateInitializing,
		},
	}
}

// OnStateChange implements engine.Observer.
func (m *Monitor) OnStateChange(c engine.StateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.RunID = c.RunID
	m.status.State = c.To
	m.status.UpdatedAt = c.At
	if c.To == engine.StateRunning {
		at := c.At
		m.status.StartedAt = &at
	}
	if c.Reason != "" {
		m.status.Reason = c.Reason
	}
}

// OnPublish implements engine.Observer.
func (m *Monitor) OnPublish(p engine.Publication) {
	cmd := p.Command

	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.RunID = p.RunID
	m.status.Ticks = p.Tick
	m.status.T = p.T.Seconds()
	m.status.UpdatedAt = m.now()
	m.latest = &cmd
}

// SetCompleter enables POST /complete. The engine is created after its
// observers, so this is set once the engine exists.
func (m *Monitor) SetCompleter(c Completer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completer = c
}

// Status returns a snapshot of the current status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Handler returns the router serving the monitor endpoints.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", m.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/command/latest", m.getLatest).Methods(http.MethodGet)
	r.HandleFunc("/complete", m.postComplete).Methods(http.MethodPost)
	return r
}

// Serve listens on addr until ctx is done. The bound address is sent on
// ready (if non-nil) once the listener is open, which is useful with ":0".
func (m *Monitor) Serve(ctx context.Context, addr string, ready chan<- net.Addr) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("monitor listening", "addr", listener.Addr().String())
	if ready != nil {
		ready <- listener.Addr()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (m *Monitor) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.Status())
}

func (m *Monitor) getLatest(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()

	if latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no command published yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (m *Monitor) postComplete(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	completer := m.completer
	m.mu.RUnlock()

	if completer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run cannot be completed yet"})
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	if err := completer.Complete(req.Reason); err != nil {
		code := http.StatusInternalServerError
		if engine.IsCompletionConflict(err) {
			code = http.StatusConflict
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("completion requested", "reason", req.Reason, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, req)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(bytes)
}
