package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/reliability/retry"
	"github.com/yourorg/rentledger/internal/service"
)

// ReminderSender runs one rent-reminder pass for a billing period.
type ReminderSender interface {
	SendRentReminders(ctx context.Context, actor domain.Identity, period domain.Period) (*service.ReminderRun, error)
}

// ReminderWorker periodically reminds tenants who are behind on the current
// month's rent and sends their landlords a digest.
type ReminderWorker struct {
	sender   ReminderSender
	logger   *slog.Logger
	interval time.Duration
	retry    *retry.Config
	clock    domain.Clock
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(sender ReminderSender, logger *slog.Logger, interval time.Duration) *ReminderWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderWorker{
		sender:   sender,
		logger:   logger,
		interval: interval,
		retry: &retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
		clock: time.Now,
	}
}

// Start begins the reminder loop. It blocks until ctx is cancelled.
func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminder worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce sends reminders for the current period. Infrastructure failures
// are retried with backoff; domain errors are not.
func (w *ReminderWorker) RunOnce(ctx context.Context) (*service.ReminderRun, error) {
	period := domain.PeriodOf(w.clock())
	logger := w.logger.With(slog.String("period", period.String()))

	run, err := retry.Do(ctx, w.retry, logger, "rent_reminders", func(ctx context.Context) (*service.ReminderRun, error) {
		run, err := w.sender.SendRentReminders(ctx, domain.SystemIdentity(), period)
		if domain.KindOf(err) != "" {
			return nil, retry.Permanent(err)
		}
		return run, err
	})
	if err != nil {
		logger.Error("reminder pass failed", slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("reminder pass complete",
		slog.Int("landlords", run.Landlords),
		slog.Int("tenants_reminded", run.TenantsReminded),
		slog.Int("digests_sent", run.DigestsSent),
	)
	return run, nil
}
