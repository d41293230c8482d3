package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// accountTables resolves each role to the table holding its accounts.
var accountTables = map[domain.Role]string{
	domain.RoleTenant:   "tenants",
	domain.RoleLandlord: "landlords",
	domain.RoleManager:  "managers",
	domain.RoleAdmin:    "admins",
}

// AccountRepository implements domain.AccountRepository.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) CreateLandlord(ctx context.Context, l *domain.Landlord) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(l).Error, "landlord")
}

func (r *AccountRepository) CreateManager(ctx context.Context, m *domain.Manager) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(m).Error, "manager")
}

func (r *AccountRepository) CreateAdmin(ctx context.Context, a *domain.Admin) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(a).Error, "admin")
}

func (r *AccountRepository) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return translateError(r.db.WithContext(ctx).Create(t).Error, "tenant")
}

func (r *AccountRepository) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "tenant")
	}
	return &t, nil
}

func (r *AccountRepository) GetTenants(ctx context.Context, ids []string) (map[string]*domain.Tenant, error) {
	out := make(map[string]*domain.Tenant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var tenants []*domain.Tenant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tenants).Error; err != nil {
		return nil, translateError(err, "tenant")
	}
	for _, t := range tenants {
		out[t.ID] = t
	}
	return out, nil
}

func (r *AccountRepository) ListTenantsByProperty(ctx context.Context, propertyID string) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("name").Find(&tenants).Error
	if err != nil {
		return nil, translateError(err, "tenant")
	}
	return tenants, nil
}

// SetTenantUnit rewrites the tenant's denormalized property/unit pointers.
func (r *AccountRepository) SetTenantUnit(ctx context.Context, tenantID string, propertyID, unitID *string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]any{"property_id": propertyID, "unit_id": unitID})
	if res.Error != nil {
		return translateError(res.Error, "tenant")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("tenant not found")
	}
	return nil
}

func (r *AccountRepository) FindByLogin(ctx context.Context, role domain.Role, login string) (*domain.Account, error) {
	table, ok := accountTables[role]
	if !ok {
		return nil, domain.Validationf("unknown role %q", role)
	}
	login = strings.TrimSpace(login)
	var acc domain.Account
	err := r.db.WithContext(ctx).
		Table(table).
		Select("id", "name", "phone", "email", "password_hash").
		Where("phone = ? OR LOWER(email) = LOWER(?)", login, login).
		Take(&acc).Error
	if err != nil {
		return nil, translateError(err, string(role))
	}
	acc.Role = role
	return &acc, nil
}

func (r *AccountRepository) Exists(ctx context.Context, role domain.Role, id string) (bool, error) {
	table, ok := accountTables[role]
	if !ok {
		return false, domain.Validationf("unknown role %q", role)
	}
	var n int64
	if err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, translateError(err, string(role))
	}
	return n > 0, nil
}
