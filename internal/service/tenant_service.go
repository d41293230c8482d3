package service

import (
	"context"
	"errors"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security"
)

// TenantService manages tenant accounts on behalf of property staff.
type TenantService struct {
	Deps
}

// NewTenantService creates a new tenant service
func NewTenantService(deps Deps) *TenantService {
	return &TenantService{Deps: deps.withDefaults()}
}

// CreateTenantInput describes a tenant created by staff. The tenant is
// attached to the property but gets a unit only through a lease.
type CreateTenantInput struct {
	PropertyID string
	Name       string
	Phone      string
	Email      string
	Password   string
}

// CreateTenant registers a tenant account under a property.
func (s *TenantService) CreateTenant(ctx context.Context, actor domain.Identity, in CreateTenantInput) (*domain.Tenant, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermTenantWrite); err != nil {
		return nil, err
	}
	if in.PropertyID == "" {
		return nil, domain.Validationf("property_id is required")
	}
	prop, err := s.Store.Properties().GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.Authz.ValidatePropertyAccess(actor, prop); err != nil {
		return nil, err
	}
	creds, err := newCredentials(in.Name, in.Phone, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	tenant := &domain.Tenant{Credentials: creds, PropertyID: &prop.ID}
	if err := s.Store.Accounts().CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflictf("phone or email already registered")
		}
		return nil, err
	}
	s.Audit.LogAction(ctx, actor, "create", "tenant", tenant.ID, "success", "")
	return tenant, nil
}

// GetTenant returns a tenant visible to the identity.
func (s *TenantService) GetTenant(ctx context.Context, actor domain.Identity, tenantID string) (*domain.Tenant, error) {
	if actor.Role != domain.RoleTenant {
		if err := s.Authz.ValidatePermission(actor.Role, security.PermTenantRead); err != nil {
			return nil, err
		}
	}
	tenant, err := s.Store.Accounts().GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTenant(ctx, s.Store, actor, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListTenants lists the tenants attached to a property.
func (s *TenantService) ListTenants(ctx context.Context, actor domain.Identity, propertyID string) ([]*domain.Tenant, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermTenantRead); err != nil {
		return nil, err
	}
	prop, err := s.Store.Properties().GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := s.Authz.ValidatePropertyAccess(actor, prop); err != nil {
		return nil, err
	}
	return s.Store.Accounts().ListTenantsByProperty(ctx, propertyID)
}
