package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security"
)

const propertyCodeAttempts = 5

// UnitService manages properties and units. Unit occupancy is read here but
// only ever written by LeaseService.
type UnitService struct {
	Deps
}

// NewUnitService creates a new unit service
func NewUnitService(deps Deps) *UnitService {
	return &UnitService{Deps: deps.withDefaults()}
}

// CreatePropertyInput describes a new property. LandlordID is only honoured
// for admins; landlords always create properties for themselves.
type CreatePropertyInput struct {
	LandlordID string
	ManagerID  *string
	Name       string
	Address    string
}

// CreateProperty registers a property and assigns it a unique property code.
func (s *UnitService) CreateProperty(ctx context.Context, actor domain.Identity, in CreatePropertyInput) (*domain.Property, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPropertyWrite); err != nil {
		return nil, err
	}
	landlordID := actor.SubjectID
	if actor.IsAdmin() {
		landlordID = in.LandlordID
	}
	if landlordID == "" {
		return nil, domain.Validationf("landlord_id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validationf("name is required")
	}

	ok, err := s.Store.Accounts().Exists(ctx, domain.RoleLandlord, landlordID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("landlord %s not found", landlordID)
	}
	if in.ManagerID != nil {
		ok, err := s.Store.Accounts().Exists(ctx, domain.RoleManager, *in.ManagerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NotFoundf("manager %s not found", *in.ManagerID)
		}
	}

	prop := &domain.Property{
		LandlordID: landlordID,
		ManagerID:  in.ManagerID,
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
	}
	for attempt := 0; attempt < propertyCodeAttempts; attempt++ {
		prop.ID = ""
		prop.PropertyCode = newPropertyCode()
		err = s.Store.Properties().Create(ctx, prop)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.Audit.LogAction(ctx, actor, "create", "property", prop.ID, "success", prop.PropertyCode)
	return prop, nil
}

func newPropertyCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// GetProperty returns a property the identity manages.
func (s *UnitService) GetProperty(ctx context.Context, actor domain.Identity, propertyID string) (*domain.Property, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPropertyRead); err != nil {
		return nil, err
	}
	prop, err := s.Store.Properties().GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := s.Authz.ValidatePropertyAccess(actor, prop); err != nil {
		return nil, err
	}
	return prop, nil
}

// ListProperties lists the properties of a landlord. Landlords see their own,
// managers see the ones they run, admins pick the landlord.
func (s *UnitService) ListProperties(ctx context.Context, actor domain.Identity, landlordID string) ([]*domain.Property, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPropertyRead); err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.RoleLandlord:
		return s.Store.Properties().ListByLandlord(ctx, actor.SubjectID)
	case domain.RoleManager:
		return s.Store.Properties().ListByManager(ctx, actor.SubjectID)
	}
	if landlordID == "" {
		return nil, domain.Validationf("landlord_id is required")
	}
	return s.Store.Properties().ListByLandlord(ctx, landlordID)
}

// CreateUnitInput describes a new unit.
type CreateUnitInput struct {
	PropertyID string
	Number     string
	RentAmount decimal.Decimal
}

// CreateUnit adds a vacant unit to a property.
func (s *UnitService) CreateUnit(ctx context.Context, actor domain.Identity, in CreateUnitInput) (*domain.Unit, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermUnitWrite); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(in.Number)
	if in.PropertyID == "" || number == "" {
		return nil, domain.Validationf("property_id and number are required")
	}
	if !in.RentAmount.IsPositive() {
		return nil, domain.Validationf("rent_amount must be greater than zero")
	}
	prop, err := s.Store.Properties().GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := s.Authz.ValidatePropertyAccess(actor, prop); err != nil {
		return nil, err
	}

	unit := &domain.Unit{PropertyID: prop.ID, Number: number, RentAmount: in.RentAmount}
	if err := s.Store.Units().Create(ctx, unit); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflictf("unit %s already exists in this property", number)
		}
		return nil, err
	}
	s.Audit.LogAction(ctx, actor, "create", "unit", unit.ID, "success", "")
	return unit, nil
}

// UpdateUnitInput patches a unit. Occupancy is not patchable.
type UpdateUnitInput struct {
	Number     *string
	RentAmount *decimal.Decimal
}

// UpdateUnit changes a unit's number or rent. Existing leases keep the rent
// they were created with.
func (s *UnitService) UpdateUnit(ctx context.Context, actor domain.Identity, unitID string, in UpdateUnitInput) (*domain.Unit, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermUnitWrite); err != nil {
		return nil, err
	}
	unit, _, err := s.authorizeUnit(ctx, s.Store, actor, unitID)
	if err != nil {
		return nil, err
	}
	if in.Number != nil {
		n := strings.TrimSpace(*in.Number)
		if n == "" {
			return nil, domain.Validationf("number must not be empty")
		}
		unit.Number = n
	}
	if in.RentAmount != nil {
		if !in.RentAmount.IsPositive() {
			return nil, domain.Validationf("rent_amount must be greater than zero")
		}
		unit.RentAmount = *in.RentAmount
	}
	if err := s.Store.Units().Update(ctx, unit); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflictf("unit %s already exists in this property", unit.Number)
		}
		return nil, err
	}
	return unit, nil
}

// GetUnit returns a unit the identity manages.
func (s *UnitService) GetUnit(ctx context.Context, actor domain.Identity, unitID string) (*domain.Unit, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermPropertyRead); err != nil {
		return nil, err
	}
	unit, _, err := s.authorizeUnit(ctx, s.Store, actor, unitID)
	return unit, err
}

// ListUnits lists the units of a property, optionally only occupied or only
// vacant ones.
func (s *UnitService) ListUnits(ctx context.Context, actor domain.Identity, propertyID string, occupied *bool) ([]*domain.Unit, error) {
	if _, err := s.GetProperty(ctx, actor, propertyID); err != nil {
		return nil, err
	}
	return s.Store.Units().ListByProperty(ctx, propertyID, occupied)
}

// DeleteUnit removes a unit that nothing references.
func (s *UnitService) DeleteUnit(ctx context.Context, actor domain.Identity, unitID string) error {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermUnitWrite); err != nil {
		return err
	}
	return s.Store.WithinTx(ctx, func(tx domain.Store) error {
		unit, _, err := s.authorizeUnit(ctx, tx, actor, unitID)
		if err != nil {
			return err
		}
		refs, err := tx.Units().References(ctx, unit.ID)
		if err != nil {
			return err
		}
		if refs > 0 {
			s.Logger.Info("unit delete blocked",
				slog.String("unit_id", unit.ID),
				slog.Int64("references", refs),
			)
			return domain.Conflictf("unit %s is referenced by leases, tenants or payments", unit.Number)
		}
		if err := tx.Units().Delete(ctx, unit.ID); err != nil {
			return err
		}
		s.Audit.LogAction(ctx, actor, "delete", "unit", unit.ID, "success", "")
		return nil
	})
}

// IsVacant reports whether the unit has no active lease.
func (s *UnitService) IsVacant(ctx context.Context, unitID string) (bool, error) {
	unit, err := s.Store.Units().GetByID(ctx, unitID)
	if err != nil {
		return false, err
	}
	return !unit.Occupied, nil
}
