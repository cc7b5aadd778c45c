package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
)

// DefaultBufferSize bounds the events waiting to be published.
const DefaultBufferSize = 10000

// maxBatch caps the events sent in one write.
const maxBatch = 100

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector publishes search events in the background. Track never blocks:
// when the buffer is full the event is dropped.
type Collector struct {
	publisher Publisher
	metrics   *metrics.Metrics
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a collector. m may be nil.
func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Collector{
		publisher: publisher,
		metrics:   m,
		eventCh:   make(chan SearchEvent, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is cancelled or Close is called.
// Buffered events are drained either way.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, c.batch(event))
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues event for publishing. Events tracked after Close are
// dropped.
func (c *Collector) Track(event SearchEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped()
		c.logger.Debug("analytics event dropped (collector closed)", "query", event.Query)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped()
		c.logger.Warn("analytics event dropped (buffer full)", "query", event.Query)
	}
}

func (c *Collector) dropped() {
	if c.metrics != nil {
		c.metrics.EventsDroppedTotal.Inc()
	}
}

// Close stops accepting events and waits for the buffer to drain. Start
// must have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

// batch collects first plus whatever else is already buffered.
func (c *Collector) batch(first SearchEvent) []kafka.Event {
	events := []kafka.Event{toKafka(first)}
	for len(events) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return events
			}
			events = append(events, toKafka(event))
		default:
			return events
		}
	}
	return events
}

func toKafka(event SearchEvent) kafka.Event {
	return kafka.Event{Key: event.Query, Value: event}
}

func (c *Collector) publish(ctx context.Context, events []kafka.Event) {
	if err := c.publisher.PublishBatch(ctx, events); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(events), "error", err)
	}
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, c.batch(event))
		default:
			return
		}
	}
}
