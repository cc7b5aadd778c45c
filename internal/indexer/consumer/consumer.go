// Package consumer drives index builds from Kafka. The indexer service
// consumes rebuild requests and announces finished builds; the search
// service consumes those announcements and reloads.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/validate"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/tracing"
)

// RebuildRequest asks for a book to be indexed. Empty dirs use the
// configured ones.
type RebuildRequest struct {
	BookDir     string `json:"book_dir"`
	OutputDir   string `json:"output_dir"`
	RequestedBy string `json:"requested_by"`
}

// IndexComplete announces a build whose files are in place.
type IndexComplete struct {
	BuildID     string    `json:"build_id"`
	OutputDir   string    `json:"output_dir"`
	Fingerprint string    `json:"fingerprint"`
	Docs        int       `json:"docs"`
	Terms       int       `json:"terms"`
	BuiltAt     time.Time `json:"built_at"`
}

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Rebuilder runs one build at a time: build, write, validate, record and
// announce. Registry, publisher and metrics may be nil.
type Rebuilder struct {
	builder   *indexer.Builder
	registry  *registry.Registry
	publisher Publisher
	metrics   *metrics.Metrics
	bookCfg   config.BookConfig
	formats   []string
	timeout   time.Duration
	retry     resilience.RetryConfig
	mu        sync.Mutex
	logger    *slog.Logger
}

type Options struct {
	Registry  *registry.Registry
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Timeout bounds a single build; zero means no limit.
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

func NewRebuilder(cfg *config.Config, opts Options) *Rebuilder {
	return &Rebuilder{
		builder:   indexer.NewBuilder(cfg),
		registry:  opts.Registry,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		bookCfg:   cfg.Book,
		formats:   cfg.Indexer.OutputFormats,
		timeout:   opts.Timeout,
		retry:     opts.Retry,
		logger:    slog.Default().With("component", "rebuilder"),
	}
}

// Rebuild builds the requested book and returns the announcement it
// published.
func (r *Rebuilder) Rebuild(ctx context.Context, req RebuildRequest) (*IndexComplete, error) {
	if req.BookDir == "" {
		req.BookDir = r.bookCfg.SourceDir
	}
	if req.OutputDir == "" {
		req.OutputDir = r.bookCfg.OutputDir
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	ctx, span := tracing.Start(ctx, "rebuild")
	defer span.End()
	var id uuid.UUID
	err := resilience.Retry(ctx, "registry-start", r.retry, func() error {
		var err error
		id, err = r.registry.Start(ctx, registry.Build{
			Title:       r.bookCfg.Title,
			SourceDir:   req.BookDir,
			OutputDir:   req.OutputDir,
			RequestedBy: req.RequestedBy,
		})
		return err
	})
	buildID := id.String()
	span.SetAttr("build_id", buildID)
	if err != nil {
		// the build itself does not depend on the registry
		r.logger.Error("registry unavailable, building anyway", "error", err)
	}
	log := r.logger.With("build_id", buildID, "book_dir", req.BookDir)
	log.Info("rebuild started", "requested_by", req.RequestedBy)

	done, err := r.build(ctx, req)
	r.finish(ctx, id, done, err)
	if err != nil {
		r.observe("failed", time.Since(start))
		log.Error("rebuild failed", "error", err)
		return nil, err
	}
	r.observe("succeeded", time.Since(start))
	done.BuildID = buildID

	if r.publisher != nil {
		err := resilience.Retry(ctx, "publish-index-complete", r.retry, func() error {
			return r.publisher.Publish(ctx, kafka.Event{Key: done.OutputDir, Value: done})
		})
		if err != nil {
			return done, fmt.Errorf("announcing build %s: %w", buildID, err)
		}
	}
	log.Info("rebuild completed",
		"fingerprint", done.Fingerprint,
		"docs", done.Docs,
		"terms", done.Terms,
		"duration", time.Since(start),
	)
	return done, nil
}

func (r *Rebuilder) build(ctx context.Context, req RebuildRequest) (*IndexComplete, error) {
	var res *indexer.BuildResult
	bctx, span := tracing.Start(ctx, "build")
	err := resilience.WithTimeout(bctx, r.timeout, "index build", func(ctx context.Context) error {
		var err error
		res, err = r.builder.BuildBook(ctx, req.BookDir)
		return err
	})
	span.End()
	if err != nil {
		return nil, err
	}
	_, span = tracing.Start(ctx, "validate")
	report := validate.Check(res.SearchIndex)
	span.End()
	if !report.OK() {
		return nil, fmt.Errorf("built index is inconsistent: %w", report.Err())
	}
	_, span = tracing.Start(ctx, "write")
	_, err = segment.NewWriter(req.OutputDir).Write(res.SearchIndex, r.formats)
	span.End()
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(res.Stats.Docs))
		for field, n := range res.Stats.TermsPerField {
			r.metrics.IndexTerms.WithLabelValues(field).Set(float64(n))
		}
	}
	return &IndexComplete{
		OutputDir:   req.OutputDir,
		Fingerprint: res.Fingerprint,
		Docs:        res.Stats.Docs,
		Terms:       res.Stats.TotalTerms(),
		BuiltAt:     time.Now().UTC(),
	}, nil
}

func (r *Rebuilder) finish(ctx context.Context, id uuid.UUID, done *IndexComplete, buildErr error) {
	if r.registry == nil {
		return
	}
	out := registry.Outcome{Err: buildErr}
	if done != nil {
		out.Fingerprint, out.Docs, out.Terms = done.Fingerprint, done.Docs, done.Terms
	}
	err := resilience.Retry(ctx, "registry-finish", r.retry, func() error {
		return r.registry.Finish(ctx, id, out)
	})
	if err != nil {
		r.logger.Error("recording build outcome failed", "build_id", id, "error", err)
	}
}

func (r *Rebuilder) observe(status string, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	r.metrics.IndexBuildDuration.Observe(d.Seconds())
}

// HandleRebuild returns a Kafka MessageHandler for rebuild requests.
// Undecodable messages are skipped; failed builds are left uncommitted.
func HandleRebuild(r *Rebuilder) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[RebuildRequest](value)
		if err != nil {
			return err
		}
		_, err = r.Rebuild(ctx, req)
		return err
	}
}

// Reloader is implemented by the search service's index reloader.
type Reloader interface {
	Reload(ctx context.Context, path string) error
}

// HandleIndexComplete returns a Kafka MessageHandler that reloads the
// announced index.
func HandleIndexComplete(reloader Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexComplete](value)
		if err != nil {
			return err
		}
		if err := reloader.Reload(ctx, event.OutputDir); err != nil {
			return fmt.Errorf("reloading build %s: %w", event.BuildID, err)
		}
		logger.Info("index reloaded from announcement", "build_id", event.BuildID, "fingerprint", event.Fingerprint)
		return nil
	}
}
