// Package kafka carries search events between the search service and the
// analytics service over segmentio/kafka-go. Producers serialise events as
// JSON; consumers hand raw messages to a MessageHandler.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/resilience"
)

// MessageHandler processes one message. A non-nil error leaves the message
// uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer feeds the messages of one topic to a MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	backoff resilience.Backoff
	log     *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. A group without committed
// offsets starts from the oldest retained message.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          topic,
			GroupID:        cfg.ConsumerGroup,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			MaxWait:        500 * time.Millisecond,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: time.Second,
		}),
		handler: handler,
		backoff: resilience.DefaultBackoff,
		log:     slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start blocks until ctx ends, then closes the reader. Consecutive fetch
// failures wait progressively longer before the next attempt.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	failures := 0
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			wait := c.backoff.Delay(failures)
			c.log.Error("fetch failed", "error", err, "attempt", failures, "retry_in", wait)
			sleep(ctx, wait)
			continue
		}
		failures = 0
		c.process(ctx, msg)
	}
	return c.reader.Close()
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		log.Error("handler rejected message", "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		log.Error("commit failed", "error", err)
	}
}

// Close releases the reader without waiting for Start to return.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("kafka: decode %T: %w", v, err)
	}
	return v, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
