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

// LeaseService manages the lease lifecycle and keeps unit occupancy and the
// tenant unit cache in step with it.
//
// Creating a lease on a unit that already has an active lease is rejected;
// the caller must end the existing lease first.
type LeaseService struct {
	Deps
}

// NewLeaseService creates a new lease service
func NewLeaseService(deps Deps) *LeaseService {
	return &LeaseService{Deps: deps.withDefaults()}
}

// CreateLeaseInput describes a new lease. StartDate defaults to today and
// Active defaults to true.
type CreateLeaseInput struct {
	TenantID   string
	UnitID     string
	RentAmount decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
	Active     *bool
}

func (in CreateLeaseInput) validate() error {
	if in.TenantID == "" || in.UnitID == "" {
		return domain.Validationf("tenant_id and unit_id are required")
	}
	if !in.RentAmount.IsPositive() {
		return domain.Validationf("rent_amount must be greater than zero")
	}
	if in.StartDate != nil && in.EndDate != nil && domain.DateOf(*in.EndDate).Before(domain.DateOf(*in.StartDate)) {
		return domain.Validationf("end_date must not be before start_date")
	}
	return nil
}

// UpdateLeaseInput is a partial lease update. Nil fields are left unchanged.
type UpdateLeaseInput struct {
	RentAmount *decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
	Active     *bool
}

// CreateLease creates a lease and, when active, marks the unit occupied.
func (s *LeaseService) CreateLease(ctx context.Context, actor domain.Identity, in CreateLeaseInput) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseWrite); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var lease *domain.Lease
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		unit, _, err := s.authorizeUnit(ctx, tx, actor, in.UnitID)
		if err != nil {
			return err
		}
		lease, err = s.createLeaseTx(ctx, tx, unit, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(ctx, actor, lease)
	return lease, nil
}

// AssignExistingTenantToUnit places a tenant without an active lease into a
// vacant unit.
func (s *LeaseService) AssignExistingTenantToUnit(ctx context.Context, actor domain.Identity, tenantID, unitID string, rent decimal.Decimal, start *time.Time) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseWrite); err != nil {
		return nil, err
	}
	active := true
	in := CreateLeaseInput{TenantID: tenantID, UnitID: unitID, RentAmount: rent, StartDate: start, Active: &active}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var lease *domain.Lease
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		unit, _, err := s.authorizeUnit(ctx, tx, actor, unitID)
		if err != nil {
			return err
		}
		if unit.Occupied {
			return errUnitOccupied(unit)
		}
		held, err := tx.Leases().ActiveForTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if held != nil {
			return domain.Conflictf("tenant already holds active lease %s", held.ID)
		}
		lease, err = s.createLeaseTx(ctx, tx, unit, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(ctx, actor, lease)
	return lease, nil
}

// createLeaseTx is the single lease-creation path. It must run inside a
// transaction so the lease insert and the occupancy write commit together.
func (s *LeaseService) createLeaseTx(ctx context.Context, tx domain.Store, unit *domain.Unit, in CreateLeaseInput) (*domain.Lease, error) {
	tenant, err := tx.Accounts().GetTenant(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	active := in.Active == nil || *in.Active
	start := s.today()
	if in.StartDate != nil {
		start = domain.DateOf(*in.StartDate)
	}
	var end *time.Time
	if in.EndDate != nil {
		d := domain.DateOf(*in.EndDate)
		if d.Before(start) {
			return nil, domain.Validationf("end_date must not be before start_date")
		}
		end = &d
	}

	if active {
		existing, err := tx.Leases().ActiveForUnit(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errUnitOccupied(unit)
		}
	}

	lease := &domain.Lease{
		TenantID:   tenant.ID,
		UnitID:     unit.ID,
		StartDate:  start,
		EndDate:    end,
		RentAmount: in.RentAmount,
		Active:     active,
	}
	if err := tx.Leases().Create(ctx, lease); err != nil {
		// Lost the race against a concurrent insert; the partial index caught it.
		if errors.Is(err, domain.ErrConflict) {
			return nil, errUnitOccupied(unit)
		}
		return nil, err
	}

	if active {
		if err := s.occupy(ctx, tx, unit, tenant.ID); err != nil {
			return nil, err
		}
	}
	return lease, nil
}

// UpdateLease applies a partial update. Toggling Active moves the unit
// between occupied and vacant in the same transaction.
func (s *LeaseService) UpdateLease(ctx context.Context, actor domain.Identity, leaseID string, in UpdateLeaseInput) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseWrite); err != nil {
		return nil, err
	}
	if in.RentAmount != nil && !in.RentAmount.IsPositive() {
		return nil, domain.Validationf("rent_amount must be greater than zero")
	}

	var lease *domain.Lease
	var transition string
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		lease, err = tx.Leases().GetByID(ctx, leaseID)
		if err != nil {
			return err
		}
		unit, _, err := s.authorizeUnit(ctx, tx, actor, lease.UnitID)
		if err != nil {
			return err
		}

		if in.RentAmount != nil {
			lease.RentAmount = *in.RentAmount
		}
		if in.StartDate != nil {
			lease.StartDate = domain.DateOf(*in.StartDate)
		}
		if in.EndDate != nil {
			d := domain.DateOf(*in.EndDate)
			lease.EndDate = &d
		}
		if lease.EndDate != nil && lease.EndDate.Before(lease.StartDate) {
			return domain.Validationf("end_date must not be before start_date")
		}

		wasActive := lease.Active
		if in.Active != nil {
			lease.Active = *in.Active
		}

		if !wasActive && lease.Active {
			other, err := tx.Leases().ActiveForUnit(ctx, lease.UnitID)
			if err != nil {
				return err
			}
			if other != nil && other.ID != lease.ID {
				return errUnitOccupied(unit)
			}
		}

		if err := tx.Leases().Update(ctx, lease); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errUnitOccupied(unit)
			}
			return err
		}

		switch {
		case !wasActive && lease.Active:
			transition = "reactivated"
			return s.occupy(ctx, tx, unit, lease.TenantID)
		case wasActive && !lease.Active:
			transition = "deactivated"
			return s.vacate(ctx, tx, unit, lease.TenantID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transition != "" {
		metrics.ObserveLeaseTransition(transition)
		if transition == "deactivated" {
			s.publish(ctx, domain.EventLeaseEnded, lease.ID, leaseEventData(lease))
		} else {
			s.publish(ctx, domain.EventLeaseCreated, lease.ID, leaseEventData(lease))
		}
	}
	s.Audit.LogLease(ctx, actor, "update", lease.ID, transition)
	return lease, nil
}

// EndLease deactivates a lease and frees its unit. Ending an already-ended
// lease returns it unchanged.
func (s *LeaseService) EndLease(ctx context.Context, actor domain.Identity, leaseID string, endDate *time.Time) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseWrite); err != nil {
		return nil, err
	}

	var lease *domain.Lease
	var ended bool
	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		lease, err = tx.Leases().GetByID(ctx, leaseID)
		if err != nil {
			return err
		}
		unit, _, err := s.authorizeUnit(ctx, tx, actor, lease.UnitID)
		if err != nil {
			return err
		}
		if !lease.Active {
			return nil
		}

		end := s.today()
		if endDate != nil {
			end = domain.DateOf(*endDate)
		}
		if end.Before(lease.StartDate) {
			return domain.Validationf("end_date must not be before start_date")
		}
		lease.Active = false
		lease.EndDate = &end
		if err := tx.Leases().Update(ctx, lease); err != nil {
			return err
		}
		ended = true
		return s.vacate(ctx, tx, unit, lease.TenantID)
	})
	if err != nil {
		return nil, err
	}

	if ended {
		metrics.ObserveLeaseTransition("ended")
		s.publish(ctx, domain.EventLeaseEnded, lease.ID, leaseEventData(lease))
		s.Audit.LogLease(ctx, actor, "end", lease.ID, "")
		s.Logger.Info("lease ended",
			slog.String("lease_id", lease.ID),
			slog.String("unit_id", lease.UnitID),
		)
	}
	return lease, nil
}

// DeleteLease removes a lease, freeing the unit if it was active. Payments
// that referenced the lease are kept with their lease reference cleared.
func (s *LeaseService) DeleteLease(ctx context.Context, actor domain.Identity, leaseID string) error {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseWrite); err != nil {
		return err
	}

	err := s.Store.WithinTx(ctx, func(tx domain.Store) error {
		lease, err := tx.Leases().GetByID(ctx, leaseID)
		if err != nil {
			return err
		}
		unit, _, err := s.authorizeUnit(ctx, tx, actor, lease.UnitID)
		if err != nil {
			return err
		}
		if lease.Active {
			if err := s.vacate(ctx, tx, unit, lease.TenantID); err != nil {
				return err
			}
		}
		if err := tx.Payments().DetachLease(ctx, lease.ID); err != nil {
			return err
		}
		return tx.Leases().Delete(ctx, lease.ID)
	})
	if err != nil {
		return err
	}

	metrics.ObserveLeaseTransition("deleted")
	s.Audit.LogLease(ctx, actor, "delete", leaseID, "")
	return nil
}

// GetLease returns a lease visible to the identity.
func (s *LeaseService) GetLease(ctx context.Context, actor domain.Identity, leaseID string) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseRead); err != nil {
		return nil, err
	}
	lease, err := s.Store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeLeaseRead(ctx, s.Store, actor, lease); err != nil {
		return nil, err
	}
	return lease, nil
}

// ListLeases lists leases within the identity's reach.
func (s *LeaseService) ListLeases(ctx context.Context, actor domain.Identity, filter domain.LeaseFilter) ([]*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseRead); err != nil {
		return nil, err
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
	return s.Store.Leases().List(ctx, filter)
}

// ActiveLeaseForUnit returns the unit's active lease or NotFound.
func (s *LeaseService) ActiveLeaseForUnit(ctx context.Context, actor domain.Identity, unitID string) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseRead); err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeUnit(ctx, s.Store, actor, unitID); err != nil {
		return nil, err
	}
	lease, err := s.Store.Leases().ActiveForUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return nil, domain.NotFoundf("unit %s has no active lease", unitID)
	}
	return lease, nil
}

// ActiveLeaseForTenant returns the tenant's active lease or NotFound.
func (s *LeaseService) ActiveLeaseForTenant(ctx context.Context, actor domain.Identity, tenantID string) (*domain.Lease, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermLeaseRead); err != nil {
		return nil, err
	}
	lease, err := s.Store.Leases().ActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return nil, domain.NotFoundf("tenant %s has no active lease", tenantID)
	}
	if err := s.authorizeLeaseRead(ctx, s.Store, actor, lease); err != nil {
		return nil, err
	}
	return lease, nil
}

func (s *LeaseService) occupy(ctx context.Context, tx domain.Store, unit *domain.Unit, tenantID string) error {
	if err := tx.Units().SetOccupied(ctx, unit.ID, true); err != nil {
		return err
	}
	unit.Occupied = true
	return tx.Accounts().SetTenantUnit(ctx, tenantID, &unit.PropertyID, &unit.ID)
}

// vacate frees the unit and clears the tenant cache if it still points here.
func (s *LeaseService) vacate(ctx context.Context, tx domain.Store, unit *domain.Unit, tenantID string) error {
	if err := tx.Units().SetOccupied(ctx, unit.ID, false); err != nil {
		return err
	}
	unit.Occupied = false
	tenant, err := tx.Accounts().GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.UnitID != nil && *tenant.UnitID == unit.ID {
		return tx.Accounts().SetTenantUnit(ctx, tenantID, tenant.PropertyID, nil)
	}
	return nil
}

func (s *LeaseService) afterCreate(ctx context.Context, actor domain.Identity, lease *domain.Lease) {
	metrics.ObserveLeaseTransition("created")
	s.publish(ctx, domain.EventLeaseCreated, lease.ID, leaseEventData(lease))
	s.Audit.LogLease(ctx, actor, "create", lease.ID, "")
	s.Logger.Info("lease created",
		slog.String("lease_id", lease.ID),
		slog.String("unit_id", lease.UnitID),
		slog.String("tenant_id", lease.TenantID),
		slog.Bool("active", lease.Active),
	)
}

func leaseEventData(l *domain.Lease) map[string]any {
	return map[string]any{
		"tenant_id":   l.TenantID,
		"unit_id":     l.UnitID,
		"rent_amount": l.RentAmount.String(),
		"active":      l.Active,
	}
}

func errUnitOccupied(unit *domain.Unit) error {
	return domain.Conflictf("unit %s already has an active lease; end it first", unit.Number)
}
