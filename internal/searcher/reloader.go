// Package searcher ties the search service together: reloading the index
// from disk swaps the executor and drops cached results of the old index.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
)

// Reloader loads indexes into an executor. Cache and metrics may be nil.
type Reloader struct {
	exec        *executor.Executor
	cache       *cache.QueryCache
	metrics     *metrics.Metrics
	defaultPath string
	logger      *slog.Logger
}

func NewReloader(exec *executor.Executor, queryCache *cache.QueryCache, m *metrics.Metrics, defaultPath string) *Reloader {
	return &Reloader{
		exec:        exec,
		cache:       queryCache,
		metrics:     m,
		defaultPath: defaultPath,
		logger:      slog.Default().With("component", "index-reloader"),
	}
}

// Reload loads the index at path, or at the default path when empty. A
// directory is searched for the index file. The old index keeps serving if
// loading fails.
func (r *Reloader) Reload(ctx context.Context, path string) error {
	if path == "" {
		path = r.defaultPath
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		located, err := segment.Locate(path)
		if err != nil {
			r.observe("error")
			return err
		}
		path = located
	}
	previous := r.exec.Fingerprint()
	if err := r.exec.Load(path); err != nil {
		r.observe("error")
		return fmt.Errorf("reloading index from %s: %w", path, err)
	}
	r.observe("success")

	if fp := r.exec.Fingerprint(); fp != previous && r.cache != nil {
		if _, err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	if st, err := r.exec.Stats(); err == nil && r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(st.Docs))
		for field, n := range st.TermsPerField {
			r.metrics.IndexTerms.WithLabelValues(field).Set(float64(n))
		}
	}
	r.logger.Info("index reloaded", "path", path, "fingerprint", r.exec.Fingerprint(), "previous", previous)
	return nil
}

func (r *Reloader) observe(status string) {
	if r.metrics != nil {
		r.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}
