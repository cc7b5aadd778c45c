// Package tracing times the stages of a search request or an index build.
// Spans nest through the context; when a root span ends it logs its tree
// at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	parent   *Span
	attrs    []any
	children []*Span
	log      *slog.Logger
}

// Start opens a span under the one carried by ctx, or a new root span. A root
// span reuses the request ID as its trace ID when there is one.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.parent = parent
		s.TraceID = parent.TraceID
		s.log = parent.log
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	} else {
		s.TraceID = logger.RequestID(ctx)
		if s.TraceID == "" {
			s.TraceID = uuid.NewString()
		}
		s.log = logger.FromContext(ctx)
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// SetAttr attaches a key-value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End fixes the span's duration. Ending a root span logs the tree.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
	if s.parent == nil {
		s.emit(0)
	}
}

// Children returns the spans started under s.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) emit(depth int) {
	if !s.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration_us", s.Duration.Microseconds(),
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	s.log.Debug("span", attrs...)
	for _, c := range children {
		c.emit(depth + 1)
	}
}
