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

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/handler"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/postgres"
)

func main() {
	configPath := flag.StringP("config", "c", "configs/development.yaml", "path to config file")
	buildOnStart := flag.Bool("build-on-start", true, "build the configured book once at startup")
	buildTimeout := flag.Duration("build-timeout", 5*time.Minute, "upper bound for a single build (0 disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"book", cfg.Book.SourceDir,
		"output", cfg.Book.OutputDir,
		"formats", cfg.Indexer.OutputFormats,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	var (
		reg *registry.Registry
		pg  *postgres.Client
	)
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		reg = registry.New(pg.DB)
		if err := reg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare build registry", "error", err)
			os.Exit(1)
		}
		slog.Info("build registry enabled", "database", cfg.Postgres.Database)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	rebuilder := consumer.NewRebuilder(cfg, consumer.Options{
		Registry:  reg,
		Publisher: producer,
		Metrics:   m,
		Timeout:   *buildTimeout,
	})
	rebuild := func(ctx context.Context, requestedBy string) {
		if _, err := rebuilder.Rebuild(ctx, consumer.RebuildRequest{RequestedBy: requestedBy}); err != nil {
			slog.Error("rebuild failed", "requested_by", requestedBy, "error", err)
		}
	}

	if *buildOnStart {
		rebuild(ctx, "startup")
	}

	if cfg.Indexer.RebuildSchedule != "" {
		sched, err := consumer.NewScheduler(cfg.Indexer.RebuildSchedule)
		if err != nil {
			slog.Error("invalid rebuild schedule", "error", err)
			os.Exit(1)
		}
		go sched.Run(ctx, func(ctx context.Context) { rebuild(ctx, "schedule") })
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pg == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "build registry disabled"}
		}
		return health.Ping(pg.Ping, health.StatusDegraded)(ctx)
	})
	checker.Register("book", func(ctx context.Context) health.ComponentHealth {
		if _, err := os.Stat(cfg.Book.SourceDir); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	handler.New(rebuilder, reg).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	m.Mount(ctx, mux, cfg.Metrics.Enabled, cfg.Metrics.Port, cfg.Server.Port)

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("indexer API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.RebuildRequests,
		consumer.HandleRebuild(rebuilder),
	).WithMetrics(m)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.RebuildRequests,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	<-serverDone
	slog.Info("indexer service stopped")
}
