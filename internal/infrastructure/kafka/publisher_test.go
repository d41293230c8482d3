package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
)

func TestPublishSendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig())
	defer producer.Close()

	event := domain.Event{
		Type:        domain.EventPaymentPaid,
		AggregateID: "pay-1",
		OccurredAt:  time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC),
		Data:        map[string]any{"lease_id": "lease-1"},
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "rentledger.events" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "pay-1" {
			return errors.New("wrong key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var got domain.Event
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.Type != domain.EventPaymentPaid {
			return errors.New("wrong event type " + string(got.Type))
		}
		return nil
	})

	p := NewPublisher(producer, "rentledger.events", nil)
	require.NoError(t, p.Publish(context.Background(), event))
}

func TestPublishReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig())
	defer producer.Close()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisher(producer, "rentledger.events", nil)
	err := p.Publish(context.Background(), domain.Event{Type: domain.EventLeaseCreated, AggregateID: "lease-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig())
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPublisher(producer, "rentledger.events", nil)
	assert.ErrorIs(t, p.Publish(ctx, domain.Event{Type: domain.EventLeaseEnded}), context.Canceled)
}
