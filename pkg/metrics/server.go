package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Mount adds the scrape endpoint to mux when metrics share the API port, or
// starts a dedicated listener otherwise. It does nothing when disabled.
func (m *Metrics) Mount(ctx context.Context, mux *http.ServeMux, enabled bool, metricsPort, apiPort int) {
	switch {
	case !enabled:
	case metricsPort == 0 || metricsPort == apiPort:
		mux.Handle("GET /metrics", m.Handler())
	default:
		go func() {
			if err := m.Serve(ctx, metricsPort); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}
}

// Serve exposes /metrics on port until ctx is done.
func (m *Metrics) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
