package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// UnitRepository implements domain.UnitRepository.
type UnitRepository struct {
	db *gorm.DB
}

// NewUnitRepository creates a unit repository.
func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) Create(ctx context.Context, unit *domain.Unit) error {
	if unit.ID == "" {
		unit.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(unit).Error, "unit")
}

func (r *UnitRepository) GetByID(ctx context.Context, id string) (*domain.Unit, error) {
	var u domain.Unit
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "unit")
	}
	return &u, nil
}

// GetByNumber matches the unit number case-insensitively.
func (r *UnitRepository) GetByNumber(ctx context.Context, propertyID, number string) (*domain.Unit, error) {
	var u domain.Unit
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND LOWER(number) = LOWER(?)", propertyID, number).
		First(&u).Error
	if err != nil {
		return nil, translateError(err, "unit")
	}
	return &u, nil
}

// Update writes the descriptive fields only; occupancy goes through SetOccupied.
func (r *UnitRepository) Update(ctx context.Context, unit *domain.Unit) error {
	res := r.db.WithContext(ctx).Model(unit).Select("number", "rent_amount").Updates(unit)
	if res.Error != nil {
		return translateError(res.Error, "unit")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("unit not found")
	}
	return nil
}

func (r *UnitRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.Unit{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error, "unit")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("unit not found")
	}
	return nil
}

func (r *UnitRepository) ListByProperty(ctx context.Context, propertyID string, occupied *bool) ([]*domain.Unit, error) {
	q := r.db.WithContext(ctx).Where("property_id = ?", propertyID)
	if occupied != nil {
		q = q.Where("occupied = ?", *occupied)
	}
	var units []*domain.Unit
	if err := q.Order("number").Find(&units).Error; err != nil {
		return nil, translateError(err, "unit")
	}
	return units, nil
}

func (r *UnitRepository) ListByProperties(ctx context.Context, propertyIDs []string) ([]*domain.Unit, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	var units []*domain.Unit
	err := r.db.WithContext(ctx).
		Where("property_id IN ?", propertyIDs).
		Order("property_id, number").
		Find(&units).Error
	if err != nil {
		return nil, translateError(err, "unit")
	}
	return units, nil
}

func (r *UnitRepository) SetOccupied(ctx context.Context, id string, occupied bool) error {
	res := r.db.WithContext(ctx).Model(&domain.Unit{}).Where("id = ?", id).Update("occupied", occupied)
	if res.Error != nil {
		return translateError(res.Error, "unit")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("unit not found")
	}
	return nil
}

func (r *UnitRepository) References(ctx context.Context, id string) (int64, error) {
	var total int64
	for _, model := range []any{&domain.Lease{}, &domain.Tenant{}, &domain.Payment{}} {
		var n int64
		if err := r.db.WithContext(ctx).Model(model).Where("unit_id = ?", id).Count(&n).Error; err != nil {
			return 0, translateError(err, "unit references")
		}
		total += n
	}
	return total, nil
}

// isNotFound is shared by the (nil, nil) lookups.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
