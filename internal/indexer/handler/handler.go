// Package handler exposes the indexer service over HTTP: on-demand
// rebuilds and the build history.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
)

type Rebuilder interface {
	Rebuild(ctx context.Context, req consumer.RebuildRequest) (*consumer.IndexComplete, error)
}

type BuildHistory interface {
	Recent(ctx context.Context, limit int) ([]registry.Build, error)
}

const (
	defaultHistory = 20
	maxHistory     = 200
)

type Handler struct {
	rebuilder Rebuilder
	history   BuildHistory
	logger    *slog.Logger
}

// New creates a handler. history may be nil when no registry is configured.
func New(rebuilder Rebuilder, history BuildHistory) *Handler {
	return &Handler{
		rebuilder: rebuilder,
		history:   history,
		logger:    slog.Default().With("component", "indexer-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/builds", h.Builds)
}

// Rebuild runs a build and answers once it is written. The body is an
// optional RebuildRequest.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req consumer.RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}

	done, err := h.rebuilder.Rebuild(r.Context(), req)
	if err != nil && done == nil {
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(r.Context()).Error("rebuild failed", "error", err, "status", status)
		h.writeError(w, status, err.Error())
		return
	}
	resp := map[string]any{"build": done}
	if err != nil {
		// built and written, but the announcement did not go out
		resp["warning"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Builds(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistory
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistory)
	}
	builds := []registry.Build{}
	if h.history != nil {
		recent, err := h.history.Recent(r.Context(), limit)
		if err != nil {
			h.logger.Error("listing builds failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "listing builds failed")
			return
		}
		if recent != nil {
			builds = recent
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"builds": builds})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
