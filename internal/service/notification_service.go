package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/observability/metrics"
	"github.com/yourorg/rentledger/internal/security"
)

// NotificationService writes rent reminders from the arrears report and
// serves the in-app inbox.
type NotificationService struct {
	Deps
	reports *ReportService
}

// NewNotificationService creates a new notification service
func NewNotificationService(deps Deps, reports *ReportService) *NotificationService {
	deps = deps.withDefaults()
	if reports == nil {
		reports = NewReportService(deps)
	}
	return &NotificationService{Deps: deps, reports: reports}
}

// ReminderRun summarises one reminder pass.
type ReminderRun struct {
	Period          domain.Period `json:"period"`
	Landlords       int           `json:"landlords"`
	TenantsReminded int           `json:"tenants_reminded"`
	DigestsSent     int           `json:"digests_sent"`
}

// SendRentReminders notifies every tenant in arrears for the period and sends
// each affected landlord a digest. A failure for one landlord is logged and
// the pass continues with the next.
func (s *NotificationService) SendRentReminders(ctx context.Context, actor domain.Identity, period domain.Period) (*ReminderRun, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermRunJobs); err != nil {
		return nil, err
	}
	if period.IsZero() {
		period = domain.PeriodOf(s.Clock())
	}
	landlords, err := s.Store.Properties().ListLandlordIDs(ctx)
	if err != nil {
		return nil, err
	}

	run := &ReminderRun{Period: period, Landlords: len(landlords)}
	var failed int
	for _, landlordID := range landlords {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		tenants, digest, err := s.remindLandlord(ctx, actor, landlordID, period)
		if err != nil {
			failed++
			s.Logger.Error("rent reminders failed for landlord",
				slog.String("landlord_id", landlordID),
				slog.String("period", period.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		run.TenantsReminded += tenants
		if digest {
			run.DigestsSent++
		}
	}

	result := "success"
	if failed > 0 {
		result = "partial"
	}
	metrics.ObserveReminders(result, run.TenantsReminded)
	s.Logger.Info("rent reminders sent",
		slog.String("period", period.String()),
		slog.Int("landlords", run.Landlords),
		slog.Int("tenants_reminded", run.TenantsReminded),
		slog.Int("failed", failed),
	)
	return run, nil
}

func (s *NotificationService) remindLandlord(ctx context.Context, actor domain.Identity, landlordID string, period domain.Period) (int, bool, error) {
	rows, err := s.reports.ReminderRecipients(ctx, actor, landlordID, period.Year, int(period.Month))
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}

	total := decimal.Zero
	err = s.Store.WithinTx(ctx, func(tx domain.Store) error {
		for _, r := range rows {
			total = total.Add(r.Balance)
			n := &domain.Notification{
				RecipientID:   r.TenantID,
				RecipientRole: domain.RoleTenant,
				Title:         fmt.Sprintf("Rent reminder for %s", period),
				Message: fmt.Sprintf("Hello %s, your rent for unit %s has an outstanding balance of KES %s for %s.",
					r.TenantName, r.UnitNumber, r.Balance.StringFixed(2), period),
			}
			if err := tx.Notifications().Create(ctx, n); err != nil {
				return err
			}
		}
		return tx.Notifications().Create(ctx, &domain.Notification{
			RecipientID:   landlordID,
			RecipientRole: domain.RoleLandlord,
			Title:         fmt.Sprintf("Arrears for %s", period),
			Message: fmt.Sprintf("%d tenant(s) owe a total of KES %s for %s.",
				len(rows), total.StringFixed(2), period),
		})
	})
	if err != nil {
		return 0, false, err
	}
	return len(rows), true, nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, actor domain.Identity, unreadOnly bool) ([]*domain.Notification, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermNotificationRead); err != nil {
		return nil, err
	}
	out, err := s.Store.Notifications().ListForRecipient(ctx, actor.Role, actor.SubjectID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*domain.Notification{}
	}
	return out, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Identity, notificationID string) error {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermNotificationRead); err != nil {
		return err
	}
	return s.Store.Notifications().MarkRead(ctx, actor.Role, actor.SubjectID, notificationID)
}
