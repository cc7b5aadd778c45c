package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultTop = 10
	maxTop     = 100
)

// Handler serves the aggregated search statistics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("POST /api/v1/analytics/reset", h.Reset)
}

// Stats answers with the aggregate; ?top=N sizes the query rankings.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := defaultTop
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
			return
		}
		top = min(n, maxTop)
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats(top))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.aggregator.Reset()
	h.logger.Info("analytics reset")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
