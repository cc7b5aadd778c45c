// Package kafka carries rebuild requests, build announcements and search
// events over segmentio/kafka-go. Values are JSON.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
)

// MessageHandler processes one message. Returning an error wrapping
// apperrors.ErrInvalidInput marks the message as unprocessable: it is
// committed and skipped. Any other error leaves it uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// fetchBackoff spaces out fetch retries while the brokers are unreachable.
const fetchBackoff = time.Second

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	handler MessageHandler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. New groups start at the
// latest offset, so a fresh replica does not replay old announcements.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		topic:   topic,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// WithMetrics counts handled messages by outcome.
func (c *Consumer) WithMetrics(m *metrics.Metrics) *Consumer {
	c.metrics = m
	return c
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)

		outcome := c.handle(ctx, msg)
		c.count(outcome)
		if outcome == "failed" {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) string {
	err := c.handler(ctx, msg.Key, msg.Value)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.logger.Warn("skipping unprocessable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return "skipped"
	default:
		c.logger.Error("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return "failed"
	}
}

func (c *Consumer) count(outcome string) {
	if c.metrics != nil {
		c.metrics.KafkaMessagesTotal.WithLabelValues(c.topic, outcome).Inc()
	}
}

// DecodeJSON unmarshals a message value into T. Decode failures wrap
// apperrors.ErrInvalidInput.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", apperrors.ErrInvalidInput, err)
	}
	return result, nil
}
