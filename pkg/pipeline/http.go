package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"github.com/synaptica-ai/curator/pkg/ingestion"
)

// HTTPHandler exposes the runner over HTTP. Batches are serialized: a second
// request waits until the running one has finished.
type HTTPHandler struct {
	runner  *Runner
	maxBody int64
	mu      sync.Mutex
}

func NewHTTPHandler(runner *Runner, maxBody int64) *HTTPHandler {
	return &HTTPHandler{runner: runner, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/process", h.handleProcess).Methods(http.MethodPost)
	router.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet).Queries("key", "{key}")
}

func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var event models.TriggerEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		logger.Log.WithError(err).Warn("invalid process payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := h.Process(r.Context(), event)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Process runs one trigger event. Callers outside HTTP, such as the trigger
// consumer, go through here so batches never overlap.
func (h *HTTPHandler) Process(ctx context.Context, event models.TriggerEvent) models.ProcessResponse {
	keys := CollectKeys(event, h.runner.bucket, h.runner.rawPrefix)

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runner.Run(ctx, keys)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	rec, err := h.runner.Status(r.Context(), key)
	if err != nil {
		if errors.Is(err, ingestion.ErrNotFound) {
			http.Error(w, "no ledger entry for key", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch ledger status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
