package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourorg/rentledger/internal/domain"
)

// PaymentRepository implements domain.PaymentRepository.
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment. A duplicate (lease_id, period) is a conflict.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(payment).Error, "payment")
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "payment")
	}
	return &p, nil
}

func (r *PaymentRepository) GetByLeasePeriod(ctx context.Context, leaseID string, period domain.Period) (*domain.Payment, error) {
	return r.first(ctx, "lease_id = ? AND period = ?", leaseID, period)
}

// GetByCheckoutID resolves any checkout id ever issued for a row, not only
// the latest one kept on the payment itself.
func (r *PaymentRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.Payment, error) {
	issued := r.db.WithContext(ctx).Model(&domain.PaymentCheckout{}).
		Select("payment_id").
		Where("checkout_id = ?", checkoutID)
	return r.first(ctx, "id IN (?) OR gateway_checkout_id = ?", issued, checkoutID)
}

func (r *PaymentRepository) AddCheckout(ctx context.Context, paymentID, checkoutID string) error {
	checkout := &domain.PaymentCheckout{CheckoutID: checkoutID, PaymentID: paymentID}
	return translateError(r.db.WithContext(ctx).Create(checkout).Error, "payment checkout")
}

func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	return translateError(r.db.WithContext(ctx).Save(payment).Error, "payment")
}

func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&domain.PaymentCheckout{}, "payment_id = ?", id).Error; err != nil {
		return translateError(err, "payment checkout")
	}
	res := r.db.WithContext(ctx).Delete(&domain.Payment{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error, "payment")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("payment not found")
	}
	return nil
}

// UpsertPaid inserts the row or, when (lease_id, period) already exists,
// overwrites amount, paid_date and status in the same statement. The caller
// re-reads the row since the surviving id may differ from payment.ID.
func (r *PaymentRepository) UpsertPaid(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = newID()
	}
	payment.Status = domain.PaymentPaid
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lease_id"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "paid_date", "status", "updated_at"}),
	}).Create(payment).Error
	return translateError(err, "payment")
}

func (r *PaymentRepository) DetachLease(ctx context.Context, leaseID string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("lease_id = ?", leaseID).
		Update("lease_id", nil).Error
	return translateError(err, "payment")
}

func (r *PaymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	q := r.db.WithContext(ctx).Model(&domain.Payment{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.UnitID != "" {
		q = q.Where("unit_id = ?", filter.UnitID)
	}
	if filter.LeaseID != "" {
		q = q.Where("lease_id = ?", filter.LeaseID)
	}
	if filter.UnitIDs != nil {
		if len(filter.UnitIDs) == 0 {
			return nil, nil
		}
		q = q.Where("unit_id IN ?", filter.UnitIDs)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var payments []*domain.Payment
	if err := q.Order("created_at DESC, id").Find(&payments).Error; err != nil {
		return nil, translateError(err, "payment")
	}
	return payments, nil
}

const effectiveDateInRange = "((paid_date >= ? AND paid_date < ?) OR (paid_date IS NULL AND created_at >= ? AND created_at < ?))"

func (r *PaymentRepository) ReceivedForUnits(ctx context.Context, unitIDs []string, from, to time.Time) ([]*domain.Payment, error) {
	return r.received(ctx, "unit_id", unitIDs, from, to)
}

func (r *PaymentRepository) ListForUnitsInPeriod(ctx context.Context, unitIDs []string, period domain.Period) ([]*domain.Payment, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	var payments []*domain.Payment
	err := r.db.WithContext(ctx).
		Where("unit_id IN ? AND period = ?", unitIDs, period).
		Order("created_at, id").
		Find(&payments).Error
	if err != nil {
		return nil, translateError(err, "payment")
	}
	return payments, nil
}

func (r *PaymentRepository) received(ctx context.Context, column string, ids []string, from, to time.Time) ([]*domain.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	from, to = from.UTC(), to.UTC()
	var payments []*domain.Payment
	err := r.db.WithContext(ctx).
		Where(column+" IN ?", ids).
		Where(effectiveDateInRange, from, to, from, to).
		Order("created_at, id").
		Find(&payments).Error
	if err != nil {
		return nil, translateError(err, "payment")
	}
	return payments, nil
}

func (r *PaymentRepository) first(ctx context.Context, cond string, args ...any) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Where(cond, args...).First(&p).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "payment")
	}
	return &p, nil
}
