package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// LeaseRepository implements domain.LeaseRepository.
type LeaseRepository struct {
	db *gorm.DB
}

// NewLeaseRepository creates a lease repository.
func NewLeaseRepository(db *gorm.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// Create inserts a lease. A second active lease for the same unit violates
// ux_leases_unit_active and comes back as a conflict.
func (r *LeaseRepository) Create(ctx context.Context, lease *domain.Lease) error {
	if lease.ID == "" {
		lease.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(lease).Error, "lease")
}

func (r *LeaseRepository) GetByID(ctx context.Context, id string) (*domain.Lease, error) {
	var l domain.Lease
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "lease")
	}
	return &l, nil
}

func (r *LeaseRepository) Update(ctx context.Context, lease *domain.Lease) error {
	return translateError(r.db.WithContext(ctx).Save(lease).Error, "lease")
}

func (r *LeaseRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.Lease{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error, "lease")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("lease not found")
	}
	return nil
}

func (r *LeaseRepository) List(ctx context.Context, filter domain.LeaseFilter) ([]*domain.Lease, error) {
	q := r.db.WithContext(ctx).Model(&domain.Lease{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.UnitID != "" {
		q = q.Where("unit_id = ?", filter.UnitID)
	}
	if filter.UnitIDs != nil {
		if len(filter.UnitIDs) == 0 {
			return nil, nil
		}
		q = q.Where("unit_id IN ?", filter.UnitIDs)
	}
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var leases []*domain.Lease
	if err := q.Order("created_at, id").Find(&leases).Error; err != nil {
		return nil, translateError(err, "lease")
	}
	return leases, nil
}

func (r *LeaseRepository) ActiveForUnit(ctx context.Context, unitID string) (*domain.Lease, error) {
	return r.firstActive(ctx, "unit_id = ?", unitID)
}

func (r *LeaseRepository) ActiveForTenant(ctx context.Context, tenantID string) (*domain.Lease, error) {
	return r.firstActive(ctx, "tenant_id = ?", tenantID)
}

func (r *LeaseRepository) ActiveForTenantAndUnit(ctx context.Context, tenantID, unitID string) (*domain.Lease, error) {
	return r.firstActive(ctx, "tenant_id = ? AND unit_id = ?", tenantID, unitID)
}

func (r *LeaseRepository) ActiveForUnits(ctx context.Context, unitIDs []string) ([]*domain.Lease, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	var leases []*domain.Lease
	err := r.db.WithContext(ctx).
		Where("unit_id IN ? AND active = ?", unitIDs, true).
		Order("created_at, id").
		Find(&leases).Error
	if err != nil {
		return nil, translateError(err, "lease")
	}
	return leases, nil
}

func (r *LeaseRepository) firstActive(ctx context.Context, cond string, args ...any) (*domain.Lease, error) {
	var l domain.Lease
	err := r.db.WithContext(ctx).
		Where(cond, args...).
		Where("active = ?", true).
		Order("created_at DESC").
		First(&l).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "lease")
	}
	return &l, nil
}
