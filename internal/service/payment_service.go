package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/observability/metrics"
	"github.com/yourorg/rentledger/internal/security"
)

// PaymentService is the payment ledger. Each (lease, period) pair has at most
// one row; rows without a lease are kept for later reconciliation.
type PaymentService struct {
	Deps
}

// NewPaymentService creates a new payment service
func NewPaymentService(deps Deps) *PaymentService {
	return &PaymentService{Deps: deps.withDefaults()}
}

// CreatePaymentInput describes a new payment row. Status defaults to pending.
type CreatePaymentInput struct {
	TenantID  string
	UnitID    string
	LeaseID   *string
	Amount    decimal.Decimal
	Period    domain.Period
	Status    domain.PaymentStatus
	PaidDate  *time.Time
	Reference *string
}

// UpdatePaymentInput is a partial payment update. Nil fields are left unchanged.
type UpdatePaymentInput struct {
	Amount    *decimal.Decimal
	Period    *domain.Period
	Status    *domain.PaymentStatus
	PaidDate  *time.Time
	Reference *string
}

// CreatePayment inserts a payment row. A row already present for the same
// lease and period is a conflict; use RecordManualPayment to overwrite.
func (s *PaymentService) CreatePayment(ctx context.Context, actor domain.Identity, in CreatePaymentInput) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentWrite); err != nil {
		return nil, err
	}
	if in.TenantID == "" || in.UnitID == "" {
		return nil, domain.Validationf("tenant_id and unit_id are required")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.Validationf("amount must be greater than zero")
	}
	if in.Period.IsZero() {
		return nil, domain.Validationf("period is required")
	}
	if in.Status == "" {
		in.Status = domain.PaymentPending
	}
	if _, err := domain.ParsePaymentStatus(string(in.Status)); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		TenantID:  in.TenantID,
		UnitID:    in.UnitID,
		Amount:    in.Amount,
		Period:    in.Period,
		Status:    in.Status,
		Reference: in.Reference,
		Channel:   domain.ChannelManual,
	}
	if in.PaidDate != nil {
		d := domain.DateOf(*in.PaidDate)
		payment.PaidDate = &d
	}
	if payment.Status == domain.PaymentPaid && payment.PaidDate == nil {
		d := s.today()
		payment.PaidDate = &d
	}

	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		if _, _, err := s.authorizeUnit(ctx, tx, actor, in.UnitID); err != nil {
			return err
		}
		if _, err := tx.Accounts().GetTenant(ctx, in.TenantID); err != nil {
			return err
		}

		if in.LeaseID != nil && *in.LeaseID != "" {
			lease, err := tx.Leases().GetByID(ctx, *in.LeaseID)
			if err != nil {
				return err
			}
			if lease.TenantID != in.TenantID || lease.UnitID != in.UnitID {
				return domain.Validationf("lease %s does not belong to this tenant and unit", lease.ID)
			}
			payment.LeaseID = &lease.ID
		} else {
			lease, err := tx.Leases().ActiveForTenantAndUnit(ctx, in.TenantID, in.UnitID)
			if err != nil {
				return err
			}
			if lease != nil {
				payment.LeaseID = &lease.ID
			}
		}

		if err := tx.Payments().Create(ctx, payment); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.Conflictf("payment for this lease/period already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment.LeaseID == nil {
		s.Logger.Warn("payment recorded without a lease",
			slog.String("payment_id", payment.ID),
			slog.String("tenant_id", payment.TenantID),
			slog.String("unit_id", payment.UnitID),
		)
	}
	s.afterWrite(ctx, actor, "create", payment)
	return payment, nil
}

// UpdatePayment applies a partial update. Moving to paid without a paid date
// stamps today.
func (s *PaymentService) UpdatePayment(ctx context.Context, actor domain.Identity, paymentID string, in UpdatePaymentInput) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentWrite); err != nil {
		return nil, err
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, domain.Validationf("amount must be greater than zero")
	}
	if in.Status != nil {
		if _, err := domain.ParsePaymentStatus(string(*in.Status)); err != nil {
			return nil, err
		}
	}
	if in.Period != nil && in.Period.IsZero() {
		return nil, domain.Validationf("period must not be empty")
	}

	var payment *domain.Payment
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		payment, err = tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if _, _, err := s.authorizeUnit(ctx, tx, actor, payment.UnitID); err != nil {
			return err
		}

		if in.Amount != nil {
			payment.Amount = *in.Amount
		}
		if in.Period != nil {
			payment.Period = *in.Period
		}
		if in.Status != nil {
			payment.Status = *in.Status
		}
		if in.PaidDate != nil {
			d := domain.DateOf(*in.PaidDate)
			payment.PaidDate = &d
		}
		if in.Reference != nil {
			payment.Reference = in.Reference
		}
		if payment.Status == domain.PaymentPaid && payment.PaidDate == nil {
			d := s.today()
			payment.PaidDate = &d
		}

		if err := tx.Payments().Update(ctx, payment); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.Conflictf("payment for this lease/period already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, actor, "update", payment)
	return payment, nil
}

// RecordManualPayment marks the lease's period as paid, inserting the row or
// overwriting amount and paid date on the existing one. It never conflicts.
func (s *PaymentService) RecordManualPayment(ctx context.Context, actor domain.Identity, leaseID string, period domain.Period, amount decimal.Decimal, paidDate *time.Time) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentWrite); err != nil {
		return nil, err
	}
	if leaseID == "" {
		return nil, domain.Validationf("lease_id is required")
	}
	if period.IsZero() {
		return nil, domain.Validationf("period is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Validationf("amount must be greater than zero")
	}

	paid := s.today()
	if paidDate != nil {
		paid = domain.DateOf(*paidDate)
	}

	var payment *domain.Payment
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		lease, err := tx.Leases().GetByID(ctx, leaseID)
		if err != nil {
			return err
		}
		if _, _, err := s.authorizeUnit(ctx, tx, actor, lease.UnitID); err != nil {
			return err
		}

		row := &domain.Payment{
			TenantID: lease.TenantID,
			UnitID:   lease.UnitID,
			LeaseID:  &lease.ID,
			Amount:   amount,
			Period:   period,
			PaidDate: &paid,
			Status:   domain.PaymentPaid,
			Channel:  domain.ChannelManual,
		}
		if err := tx.Payments().UpsertPaid(ctx, row); err != nil {
			return err
		}
		payment, err = tx.Payments().GetByLeasePeriod(ctx, lease.ID, period)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.NotFoundf("payment for lease %s period %s not found after upsert", lease.ID, period)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, actor, "record", payment)
	return payment, nil
}

// DeletePayment removes a payment row.
func (s *PaymentService) DeletePayment(ctx context.Context, actor domain.Identity, paymentID string) error {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentWrite); err != nil {
		return err
	}
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		payment, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if _, _, err := s.authorizeUnit(ctx, tx, actor, payment.UnitID); err != nil {
			return err
		}
		return tx.Payments().Delete(ctx, payment.ID)
	})
	if err != nil {
		return err
	}
	metrics.ObservePayment("delete", "")
	s.Audit.LogPayment(ctx, actor, "delete", paymentID, "")
	return nil
}

// GetPayment returns a payment visible to the identity.
func (s *PaymentService) GetPayment(ctx context.Context, actor domain.Identity, paymentID string) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentRead); err != nil {
		return nil, err
	}
	payment, err := s.Store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizePaymentRead(ctx, actor, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// PaymentForLeasePeriod returns the row for a lease and period, or NotFound.
func (s *PaymentService) PaymentForLeasePeriod(ctx context.Context, actor domain.Identity, leaseID string, period domain.Period) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentRead); err != nil {
		return nil, err
	}
	lease, err := s.Store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLeaseRead(ctx, s.Store, actor, lease); err != nil {
		return nil, err
	}
	payment, err := s.Store.Payments().GetByLeasePeriod(ctx, leaseID, period)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.NotFoundf("no payment for lease %s in %s", leaseID, period)
	}
	return payment, nil
}

// ListPayments lists payments within the identity's reach. Tenants only see
// their own rows.
func (s *PaymentService) ListPayments(ctx context.Context, actor domain.Identity, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentRead); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.Validationf("to must not be before from")
	}
	if actor.Role == domain.RoleTenant {
		filter.TenantID = actor.SubjectID
	} else {
		scope, err := scopeUnits(ctx, s.Store, actor)
		if err != nil {
			return nil, err
		}
		if scope != nil {
			filter.UnitIDs = scope
		}
	}
	return s.Store.Payments().List(ctx, filter)
}

func (s *PaymentService) authorizePaymentRead(ctx context.Context, actor domain.Identity, p *domain.Payment) error {
	if actor.Role == domain.RoleTenant {
		return s.Authz.ValidateTenantSelf(actor, p.TenantID)
	}
	_, _, err := s.authorizeUnit(ctx, s.Store, actor, p.UnitID)
	return err
}

func (s *PaymentService) afterWrite(ctx context.Context, actor domain.Identity, op string, p *domain.Payment) {
	metrics.ObservePayment(op, string(p.Status))
	data := paymentEventData(p)
	s.publish(ctx, domain.EventPaymentRecorded, p.ID, data)
	if p.Status == domain.PaymentPaid {
		s.publish(ctx, domain.EventPaymentPaid, p.ID, data)
	}
	s.Audit.LogPayment(ctx, actor, op, p.ID, p.Period.String())
}

func paymentEventData(p *domain.Payment) map[string]any {
	data := map[string]any{
		"tenant_id": p.TenantID,
		"unit_id":   p.UnitID,
		"amount":    p.Amount.String(),
		"period":    p.Period.String(),
		"status":    string(p.Status),
		"channel":   string(p.Channel),
	}
	if p.LeaseID != nil {
		data["lease_id"] = *p.LeaseID
	}
	return data
}
