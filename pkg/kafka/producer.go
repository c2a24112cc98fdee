package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
)

// Event is one record to publish. Events sharing a Key keep their order.
type Event struct {
	Key   string
	Value any
}

// Producer writes Events as JSON to a single topic.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewProducer returns a zstd-compressing, key-hashed writer for topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
			Compression:            kafka.Zstd,
			AllowAutoTopicCreation: true,
		},
		log: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch encodes every event before writing any, so a value that
// fails to marshal aborts the whole batch.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write %d messages to %s: %w", len(msgs), p.writer.Topic, err)
	}
	p.log.Debug("published", "count", len(msgs))
	return nil
}

func encode(events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("kafka: encode event %d (key %q): %w", i, e.Key, err)
		}
		msgs[i] = kafka.Message{Key: []byte(e.Key), Value: value}
	}
	return msgs, nil
}

// Close flushes buffered messages.
func (p *Producer) Close() error {
	return p.writer.Close()
}
