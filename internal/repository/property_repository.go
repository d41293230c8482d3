package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// PropertyRepository implements domain.PropertyRepository.
type PropertyRepository struct {
	db *gorm.DB
}

// NewPropertyRepository creates a property repository.
func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Create(ctx context.Context, property *domain.Property) error {
	if property.ID == "" {
		property.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(property).Error, "property")
}

func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	var p domain.Property
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "property")
	}
	return &p, nil
}

// GetByCode matches the property code case-insensitively after trimming.
func (r *PropertyRepository) GetByCode(ctx context.Context, code string) (*domain.Property, error) {
	var p domain.Property
	err := r.db.WithContext(ctx).
		Where("UPPER(property_code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&p).Error
	if err != nil {
		return nil, translateError(err, "property")
	}
	return &p, nil
}

func (r *PropertyRepository) ListByLandlord(ctx context.Context, landlordID string) ([]*domain.Property, error) {
	return r.list(ctx, "landlord_id = ?", landlordID)
}

func (r *PropertyRepository) ListByManager(ctx context.Context, managerID string) ([]*domain.Property, error) {
	return r.list(ctx, "manager_id = ?", managerID)
}

func (r *PropertyRepository) ListLandlordIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.Property{}).
		Distinct("landlord_id").
		Order("landlord_id").
		Pluck("landlord_id", &ids).Error
	if err != nil {
		return nil, translateError(err, "property")
	}
	return ids, nil
}

func (r *PropertyRepository) list(ctx context.Context, cond string, args ...any) ([]*domain.Property, error) {
	var props []*domain.Property
	if err := r.db.WithContext(ctx).Where(cond, args...).Order("created_at, id").Find(&props).Error; err != nil {
		return nil, translateError(err, "property")
	}
	return props, nil
}
