package service

import (
	"context"

	"github.com/yourorg/rentledger/internal/domain"
)

// unitWithProperty loads a unit and the property it belongs to.
func unitWithProperty(ctx context.Context, st domain.Store, unitID string) (*domain.Unit, *domain.Property, error) {
	unit, err := st.Units().GetByID(ctx, unitID)
	if err != nil {
		return nil, nil, err
	}
	prop, err := st.Properties().GetByID(ctx, unit.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	return unit, prop, nil
}

// authorizeUnit checks that the identity manages the unit's property.
func (d Deps) authorizeUnit(ctx context.Context, st domain.Store, id domain.Identity, unitID string) (*domain.Unit, *domain.Property, error) {
	unit, prop, err := unitWithProperty(ctx, st, unitID)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Authz.ValidatePropertyAccess(id, prop); err != nil {
		return nil, nil, err
	}
	return unit, prop, nil
}

// authorizeLeaseRead lets tenants read their own leases and property staff
// read leases on their units.
func (d Deps) authorizeLeaseRead(ctx context.Context, st domain.Store, id domain.Identity, lease *domain.Lease) error {
	if id.Role == domain.RoleTenant {
		return d.Authz.ValidateTenantSelf(id, lease.TenantID)
	}
	_, _, err := d.authorizeUnit(ctx, st, id, lease.UnitID)
	return err
}

// authorizeTenant lets tenants act on themselves and property staff act on
// tenants attached to their properties.
func (d Deps) authorizeTenant(ctx context.Context, st domain.Store, id domain.Identity, tenant *domain.Tenant) error {
	switch id.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleTenant:
		return d.Authz.ValidateTenantSelf(id, tenant.ID)
	}
	if tenant.PropertyID == nil {
		return domain.Forbiddenf("access denied: tenant is not attached to your property")
	}
	prop, err := st.Properties().GetByID(ctx, *tenant.PropertyID)
	if err != nil {
		return err
	}
	return d.Authz.ValidatePropertyAccess(id, prop)
}

// scopeUnits returns the unit ids a landlord or manager may see. Admins get
// nil, meaning no restriction; tenants are scoped by tenant id instead.
func scopeUnits(ctx context.Context, st domain.Store, id domain.Identity) ([]string, error) {
	var props []*domain.Property
	var err error
	switch id.Role {
	case domain.RoleLandlord:
		props, err = st.Properties().ListByLandlord(ctx, id.SubjectID)
	case domain.RoleManager:
		props, err = st.Properties().ListByManager(ctx, id.SubjectID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	units, err := st.Units().ListByProperties(ctx, propertyIDs(props))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func propertyIDs(props []*domain.Property) []string {
	ids := make([]string, 0, len(props))
	for _, p := range props {
		ids = append(ids, p.ID)
	}
	return ids
}
