package domain

import (
	"context"
	"time"
)

// EventType names a ledger domain event.
type EventType string

const (
	EventLeaseCreated    EventType = "lease.created"
	EventLeaseEnded      EventType = "lease.ended"
	EventPaymentRecorded EventType = "payment.recorded"
	EventPaymentPaid     EventType = "payment.paid"
)

// Event is published after the change it describes has been committed.
type Event struct {
	Type        EventType      `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data,omitempty"`
}

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
