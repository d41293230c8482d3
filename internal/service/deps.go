package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security"
	"github.com/yourorg/rentledger/internal/security/audit"
)

// Deps are the collaborators shared by the ledger services.
type Deps struct {
	Store  domain.Store
	Authz  *security.AuthorizationService
	Audit  *audit.Logger
	Events domain.EventPublisher
	Clock  domain.Clock
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Authz == nil {
		d.Authz = security.NewAuthorizationService(d.Logger)
	}
	if d.Audit == nil {
		d.Audit = audit.NewLogger(d.Logger)
	}
	if d.Events == nil {
		d.Events = domain.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) today() time.Time {
	return domain.DateOf(d.Clock())
}

// publish delivers an event after commit. Delivery failures are logged and
// never undo the committed change.
func (d Deps) publish(ctx context.Context, typ domain.EventType, aggregateID string, data map[string]any) {
	ev := domain.Event{Type: typ, AggregateID: aggregateID, OccurredAt: d.Clock().UTC(), Data: data}
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.Logger.Warn("failed to publish event",
			slog.String("event", string(typ)),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
	}
}
