// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/tracing"
)

type SearchExecutor interface {
	View() (*executor.View, error)
	Stats() (*executor.Stats, error)
}

type IndexReloader interface {
	Reload(ctx context.Context, path string) error
}

type EventTracker interface {
	Track(event analytics.SearchEvent)
}

// Handler serves search requests. Cache, tracker, reloader and metrics are
// optional.
type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	tracker      EventTracker
	reloader     IndexReloader
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

type Options struct {
	Cache        *cache.QueryCache
	Tracker      EventTracker
	Reloader     IndexReloader
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

func New(exec SearchExecutor, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		executor:     exec,
		cache:        opts.Cache,
		tracker:      opts.Tracker,
		reloader:     opts.Reloader,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	defer span.End()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	// parse, cache key and ranking all use the index loaded now
	view, err := h.executor.View()
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	plan, err := view.Parse(query)
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	if len(plan.Terms) == 0 {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:       query,
			Results:     []executor.Result{},
			TermStats:   map[string]int{},
			Fingerprint: view.Fingerprint(),
		})
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	compute := func() (*executor.SearchResult, error) {
		ctx, span := tracing.Start(ctx, "execute")
		defer span.End()
		return view.Execute(ctx, plan, limit)
	}
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, view.Fingerprint(), plan, limit, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		h.fail(w, r, "search", err)
		return
	}
	// results may be shared with concurrent callers of the same query
	out := *result
	out.Query = query
	result = &out

	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	span.SetAttr("total_hits", result.TotalHits)
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	eventType := analytics.TypeFor(result.TotalHits, cacheHit)
	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType(eventType)).Inc()
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:        eventType,
			Query:       query,
			Terms:       plan.Terms,
			TotalHits:   result.TotalHits,
			Returned:    len(result.Results),
			LatencyMs:   latency.Milliseconds(),
			CacheHit:    cacheHit,
			Fingerprint: result.Fingerprint,
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func resultType(t analytics.EventType) string {
	switch t {
	case analytics.EventZeroResult:
		return "zero_result"
	case analytics.EventCacheHit:
		return "hit"
	default:
		return "miss"
	}
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.executor.Stats()
	if err != nil {
		h.fail(w, r, "index stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// Reload reloads the configured index path.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reloading is disabled")
		return
	}
	if err := h.reloader.Reload(r.Context(), ""); err != nil {
		h.fail(w, r, "index reload", err)
		return
	}
	h.IndexStats(w, r)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// fail maps err to a status code. Internal errors are logged and their
// details kept out of the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = op + " failed"
	}
	logger.FromContext(r.Context()).Error(op+" failed", "error", err, "status", status)
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
