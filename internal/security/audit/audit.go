package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/rentledger/internal/domain"
)

type requestIDKey struct{}

// WithRequestID stores the request id so audit entries can be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, actor domain.Identity, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("subject_id", actor.SubjectID),
		slog.String("role", string(actor.Role)),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

// LogLease records a lease lifecycle transition.
func (al *Logger) LogLease(ctx context.Context, actor domain.Identity, action, leaseID, details string) {
	al.LogAction(ctx, actor, action, "lease", leaseID, "success", details)
}

// LogPayment records a payment ledger write.
func (al *Logger) LogPayment(ctx context.Context, actor domain.Identity, action, paymentID, details string) {
	al.LogAction(ctx, actor, action, "payment", paymentID, "success", details)
}

func (al *Logger) LogDenied(ctx context.Context, actor domain.Identity, reason string) {
	al.LogAction(ctx, actor, "access_denied", "api", "", "denied", reason)
}
