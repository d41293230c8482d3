package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/yourorg/rentledger/internal/domain"
)

// Publisher sends ledger events to a single Kafka topic keyed by aggregate id,
// so every event for one lease or payment lands on the same partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewConfig returns the producer settings the publisher expects.
func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 10 * time.Second
	return config
}

// Connect dials the brokers, retrying while they come up.
func Connect(ctx context.Context, brokers []string, topic string, attempts int, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		producer, err := sarama.NewSyncProducer(brokers, NewConfig())
		if err == nil {
			logger.Info("kafka producer initialized",
				slog.Any("brokers", brokers),
				slog.String("topic", topic),
			)
			return NewPublisher(producer, topic, logger), nil
		}
		lastErr = err
		logger.Warn("waiting for kafka",
			slog.Int("attempt", i),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()),
		)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to start kafka producer: %w", lastErr)
}

// NewPublisher wraps an existing producer.
func NewPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish implements domain.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		slog.String("type", string(event.Type)),
		slog.String("aggregate_id", event.AggregateID),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
