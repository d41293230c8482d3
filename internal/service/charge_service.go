package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/observability/metrics"
	"github.com/yourorg/rentledger/internal/security"
)

// Callback outcomes returned by HandleCallback.
const (
	CallbackMatched   = "matched"
	CallbackFailed    = "failed"
	CallbackUnmatched = "unmatched"
	CallbackDuplicate = "duplicate"
)

// ChargeService drives mobile-money collection for a lease. Each (lease,
// period) has one pending row that is reused by repeated initiations and
// settled by the callback of any checkout issued for it.
type ChargeService struct {
	Deps
	gateway domain.PaymentGateway
}

// NewChargeService creates a new charge service
func NewChargeService(deps Deps, gateway domain.PaymentGateway) *ChargeService {
	return &ChargeService{Deps: deps.withDefaults(), gateway: gateway}
}

// ChargeOutcome is returned once the provider has accepted the charge.
type ChargeOutcome struct {
	Payment           *domain.Payment `json:"payment"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	CustomerMessage   string          `json:"customer_message"`
}

// InitiateCharge prompts the lease's tenant to pay amount for the current
// period. The pending row is committed before the provider is called, so a
// provider failure leaves it pending and a retry reuses it.
func (s *ChargeService) InitiateCharge(ctx context.Context, actor domain.Identity, leaseID string, amount decimal.Decimal) (*ChargeOutcome, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentInitiate); err != nil {
		return nil, err
	}
	if leaseID == "" {
		return nil, domain.Validationf("lease_id is required")
	}
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, domain.Validationf("amount must be at least 1")
	}
	if !amount.Equal(amount.Truncate(0)) {
		return nil, domain.Validationf("amount must be a whole number")
	}

	lease, err := s.Store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLeaseRead(ctx, s.Store, actor, lease); err != nil {
		return nil, err
	}
	if !lease.Active {
		return nil, domain.Conflictf("lease %s is not active", lease.ID)
	}
	tenant, err := s.Store.Accounts().GetTenant(ctx, lease.TenantID)
	if err != nil {
		return nil, err
	}
	msisdn, err := domain.NormalizeMSISDN(tenant.Phone)
	if err != nil {
		return nil, err
	}

	period := domain.PeriodOf(s.Clock())
	payment, err := s.pendingRow(ctx, lease, period, amount)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.gateway.InitiateCharge(ctx, domain.ChargeRequest{
		MSISDN:           msisdn,
		Amount:           amount,
		AccountReference: accountReference(period),
		Description:      "Rent " + period.String(),
	})
	if err != nil {
		metrics.ObserveSTKPush("error", time.Since(start))
		s.Logger.Error("stk push failed",
			slog.String("lease_id", lease.ID),
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()),
		)
		return nil, domain.GatewayError("payment provider request failed", err)
	}
	if resp.ResponseCode != "0" {
		metrics.ObserveSTKPush("rejected", time.Since(start))
		return nil, domain.GatewayError("payment provider rejected the request: "+resp.ResponseDescription, nil)
	}
	metrics.ObserveSTKPush("accepted", time.Since(start))

	checkoutID := resp.CheckoutRequestID
	if payment, err = s.recordCheckout(ctx, payment.ID, checkoutID); err != nil {
		return nil, err
	}

	s.Audit.LogPayment(ctx, actor, "initiate_charge", payment.ID, checkoutID)
	s.Logger.Info("stk push accepted",
		slog.String("lease_id", lease.ID),
		slog.String("payment_id", payment.ID),
		slog.String("checkout_request_id", checkoutID),
	)
	return &ChargeOutcome{
		Payment:           payment,
		CheckoutRequestID: checkoutID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// recordCheckout keeps checkoutID alongside every earlier id of the row and
// makes it the row's current checkout. The row is re-read because a callback
// for an earlier prompt may have settled it while the provider was called.
func (s *ChargeService) recordCheckout(ctx context.Context, paymentID, checkoutID string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		if err := tx.Payments().AddCheckout(ctx, paymentID, checkoutID); err != nil {
			return err
		}
		current, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		current.GatewayCheckoutID = &checkoutID
		payment = current
		return tx.Payments().Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// pendingRow reuses or creates the (lease, period) row and commits it. A
// concurrent initiation that inserted the row first is picked up on retry.
func (s *ChargeService) pendingRow(ctx context.Context, lease *domain.Lease, period domain.Period, amount decimal.Decimal) (*domain.Payment, error) {
	payment, err := s.upsertPending(ctx, lease, period, amount)
	if errors.Is(err, errPendingRace) {
		payment, err = s.upsertPending(ctx, lease, period, amount)
	}
	return payment, err
}

var errPendingRace = errors.New("pending row inserted concurrently")

func (s *ChargeService) upsertPending(ctx context.Context, lease *domain.Lease, period domain.Period, amount decimal.Decimal) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		existing, err := tx.Payments().GetByLeasePeriod(ctx, lease.ID, period)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == domain.PaymentPaid {
				return domain.Conflictf("rent for %s is already paid", period)
			}
			existing.Amount = amount
			existing.Status = domain.PaymentPending
			existing.Channel = domain.ChannelMpesa
			payment = existing
			return tx.Payments().Update(ctx, existing)
		}

		payment = &domain.Payment{
			TenantID: lease.TenantID,
			UnitID:   lease.UnitID,
			LeaseID:  &lease.ID,
			Amount:   amount,
			Period:   period,
			Status:   domain.PaymentPending,
			Channel:  domain.ChannelMpesa,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errPendingRace
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// HandleCallback settles the row the callback's checkout request id was
// issued for. Unknown ids and replays are acknowledged without changes.
func (s *ChargeService) HandleCallback(ctx context.Context, result domain.ChargeResult) (string, error) {
	if result.CheckoutRequestID == "" {
		return "", domain.Validationf("callback has no CheckoutRequestID")
	}

	outcome := CallbackUnmatched
	var payment *domain.Payment
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		payment, err = tx.Payments().GetByCheckoutID(ctx, result.CheckoutRequestID)
		if err != nil || payment == nil {
			return err
		}
		if payment.Status == domain.PaymentPaid {
			outcome = CallbackDuplicate
			return nil
		}

		if len(result.Raw) > 0 && json.Valid(result.Raw) {
			payment.GatewayResult = datatypes.JSON(result.Raw)
		}
		if result.Succeeded() {
			outcome = CallbackMatched
			paid := s.today()
			payment.Status = domain.PaymentPaid
			payment.PaidDate = &paid
			if result.Amount != nil {
				payment.Amount = *result.Amount
			}
			if result.ReceiptNumber != "" {
				receipt := result.ReceiptNumber
				payment.Reference = &receipt
			}
		} else {
			outcome = CallbackFailed
		}
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return "", err
	}
	metrics.ObserveCallback(outcome)

	switch outcome {
	case CallbackUnmatched:
		s.Logger.Warn("callback for unknown checkout request",
			slog.String("checkout_request_id", result.CheckoutRequestID),
		)
	case CallbackFailed:
		s.Logger.Info("charge not completed",
			slog.String("checkout_request_id", result.CheckoutRequestID),
			slog.String("payment_id", payment.ID),
			slog.Int("result_code", result.ResultCode),
			slog.String("result_desc", result.ResultDesc),
		)
	case CallbackMatched:
		metrics.ObservePayment("callback", string(payment.Status))
		s.publish(ctx, domain.EventPaymentPaid, payment.ID, paymentEventData(payment))
		s.Audit.LogPayment(ctx, domain.SystemIdentity(), "callback_paid", payment.ID, result.ReceiptNumber)
	}
	return outcome, nil
}

// ChargeStatus returns the lease's row for the period, or NotFound when no
// charge or payment exists yet.
func (s *ChargeService) ChargeStatus(ctx context.Context, actor domain.Identity, leaseID string, period domain.Period) (*domain.Payment, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPaymentRead); err != nil {
		return nil, err
	}
	if period.IsZero() {
		period = domain.PeriodOf(s.Clock())
	}
	lease, err := s.Store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLeaseRead(ctx, s.Store, actor, lease); err != nil {
		return nil, err
	}
	payment, err := s.Store.Payments().GetByLeasePeriod(ctx, lease.ID, period)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.NotFoundf("no charge for lease %s in %s", lease.ID, period)
	}
	return payment, nil
}

// accountReference fits the provider's 12 character limit.
func accountReference(p domain.Period) string {
	ref := "RENT" + p.String()[:4] + p.String()[5:]
	if len(ref) > 12 {
		ref = ref[:12]
	}
	return ref
}
