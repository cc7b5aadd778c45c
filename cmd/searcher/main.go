package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/resilience"
)

func main() {
	configPath := flag.StringP("config", "c", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Search.IndexPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	var queryCache *cache.QueryCache
	var redisStore *cache.BreakerStore
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		redisStore = cache.NewBreakerStore(redisClient, resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}))
		queryCache = cache.New(redisStore, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	exec := executor.New()
	reloader := searcher.NewReloader(exec, queryCache, m, cfg.Search.IndexPath)
	if err := reloader.Reload(ctx, ""); err != nil {
		// readiness stays down until an index arrives
		slog.Warn("no index loaded at startup", "error", err)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, analytics.DefaultBufferSize, m)
	collector.Start(ctx)
	defer collector.Close()

	aggregator := analytics.NewAggregator()
	analyticsKafka := cfg.Kafka
	analyticsKafka.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	eventConsumer := kafka.NewConsumer(analyticsKafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator)).WithMetrics(m)
	go func() {
		if err := eventConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	// every replica reloads, so each gets its own group
	hostname, _ := os.Hostname()
	reloadKafka := cfg.Kafka
	reloadKafka.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-searcher-" + hostname
	reloadConsumer := kafka.NewConsumer(reloadKafka, cfg.Kafka.Topics.IndexComplete, consumer.HandleIndexComplete(reloader)).WithMetrics(m)
	go func() {
		if err := reloadConsumer.Start(ctx); err != nil {
			slog.Error("index-complete consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		st, err := exec.Stats()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d docs, fingerprint %s", st.Docs, st.Fingerprint)}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if redisStore.State() == resilience.StateOpen {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit open"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(exec, handler.Options{
		Cache:        queryCache,
		Tracker:      collector,
		Reloader:     reloader,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	analyticsH.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	m.Mount(ctx, mux, cfg.Metrics.Enabled, cfg.Metrics.Port, cfg.Server.Port)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Sweep(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// main returns only after in-flight requests finish tracking events
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
