package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/politodown/internal/downloader/progress"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/storage"
	"github.com/italolelis/politodown/internal/telemetry"
)

// Run phases reported by /status.
const (
	PhaseStarting    = "starting"
	PhaseDownloading = "downloading"
	PhaseCompleted   = "completed"
	PhaseFailed      = "failed"
)

// ProgressSource exposes the progress of the current run.
type ProgressSource interface {
	Snapshot() progress.State
}

// FileLister reads the per-file outcomes recorded for a run.
type FileLister interface {
	GetFiles(ctx context.Context, runID string) ([]storage.FileRecord, error)
}

type StatusResponse struct {
	RunID    string         `json:"run_id"`
	Node     string         `json:"node,omitempty"`
	Phase    string         `json:"phase"`
	Error    string         `json:"error,omitempty"`
	Started  time.Time      `json:"started_at"`
	Elapsed  string         `json:"elapsed"`
	Progress progress.State `json:"progress"`
}

type StatusHandler struct {
	source    ProgressSource
	runID     string
	started   time.Time
	now       func() time.Time
	telemetry *telemetry.Telemetry
	ledger    FileLister

	mu    sync.Mutex
	node  string
	phase string
	err   error
}

// NewStatusHandler creates a handler reporting on the run identified by runID.
func NewStatusHandler(source ProgressSource, runID string, tel *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{
		source:    source,
		runID:     runID,
		started:   time.Now(),
		now:       time.Now,
		telemetry: tel,
		phase:     PhaseStarting,
	}
}

// SetLedger enables GET /files, listing what the ledger holds for this run.
func (h *StatusHandler) SetLedger(ledger FileLister) {
	h.ledger = ledger
}

// SetNode records the name of the node being downloaded.
func (h *StatusHandler) SetNode(name string) {
	h.mu.Lock()
	h.node = name
	h.mu.Unlock()
}

// SetPhase moves the run to phase. err is kept for failed runs.
func (h *StatusHandler) SetPhase(phase string, err error) {
	h.mu.Lock()
	h.phase = phase
	h.err = err
	h.mu.Unlock()
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Get("/status", h.HandleStatus)
	r.Get("/files", h.HandleFiles)
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", h.telemetry.Handler())

	return r
}

// HandleStatus returns a JSON snapshot of the run.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	h.mu.Lock()
	resp := StatusResponse{
		RunID:   h.runID,
		Node:    h.node,
		Phase:   h.phase,
		Started: h.started,
		Elapsed: h.now().Sub(h.started).Round(time.Second).String(),
	}

	if h.err != nil {
		resp.Error = h.err.Error()
	}
	h.mu.Unlock()

	if h.source != nil {
		resp.Progress = h.source.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)

		return
	}
}

// HandleFiles returns the file outcomes recorded so far in this run.
func (h *StatusHandler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	if h.ledger == nil {
		http.Error(w, "no ledger configured", http.StatusNotFound)

		return
	}

	files, err := h.ledger.GetFiles(r.Context(), h.runID)
	if err != nil {
		logger.Error("failed to read ledger", "err", err)
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)

		return
	}

	if files == nil {
		files = []storage.FileRecord{}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(files); err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)

		return
	}
}

// HandleHealth reports liveness.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
