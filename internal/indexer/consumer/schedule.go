package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorhill/cronexpr"
)

// Scheduler calls a function on a cron schedule. Runs never overlap: a run
// that overlaps the next tick delays it.
type Scheduler struct {
	expr   *cronexpr.Expression
	spec   string
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(spec string) (*Scheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	return &Scheduler{
		expr:   expr,
		spec:   spec,
		now:    time.Now,
		logger: slog.Default().With("component", "rebuild-scheduler"),
	}, nil
}

// Next returns the first tick after t, or the zero time when the
// schedule has no more ticks.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Run blocks until ctx is cancelled, calling fn at every tick.
func (s *Scheduler) Run(ctx context.Context, fn func(ctx context.Context)) {
	s.logger.Info("scheduler started", "schedule", s.spec)
	for {
		next := s.expr.Next(s.now())
		if next.IsZero() {
			s.logger.Warn("schedule has no further ticks", "schedule", s.spec)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			s.logger.Debug("scheduled tick", "at", next)
			fn(ctx)
		}
	}
}
