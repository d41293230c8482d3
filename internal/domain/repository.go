package domain

import (
	"context"
	"time"
)

// UnitRepository persists units. SetOccupied is only called by lease
// operations inside their transaction.
type UnitRepository interface {
	Create(ctx context.Context, unit *Unit) error
	GetByID(ctx context.Context, id string) (*Unit, error)
	GetByNumber(ctx context.Context, propertyID, number string) (*Unit, error)
	Update(ctx context.Context, unit *Unit) error
	Delete(ctx context.Context, id string) error
	ListByProperty(ctx context.Context, propertyID string, occupied *bool) ([]*Unit, error)
	ListByProperties(ctx context.Context, propertyIDs []string) ([]*Unit, error)
	SetOccupied(ctx context.Context, id string, occupied bool) error
	// References counts leases, tenants and payments pointing at the unit.
	References(ctx context.Context, id string) (int64, error)
}

// LeaseRepository persists leases.
type LeaseRepository interface {
	Create(ctx context.Context, lease *Lease) error
	GetByID(ctx context.Context, id string) (*Lease, error)
	Update(ctx context.Context, lease *Lease) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter LeaseFilter) ([]*Lease, error)
	// Active* lookups return (nil, nil) when no active lease exists.
	ActiveForUnit(ctx context.Context, unitID string) (*Lease, error)
	ActiveForTenant(ctx context.Context, tenantID string) (*Lease, error)
	ActiveForTenantAndUnit(ctx context.Context, tenantID, unitID string) (*Lease, error)
	ActiveForUnits(ctx context.Context, unitIDs []string) ([]*Lease, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	// GetByLeasePeriod and GetByCheckoutID return (nil, nil) when absent.
	GetByLeasePeriod(ctx context.Context, leaseID string, period Period) (*Payment, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Payment, error)
	// AddCheckout records a checkout request id issued for the payment.
	AddCheckout(ctx context.Context, paymentID, checkoutID string) error
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id string) error
	// UpsertPaid inserts or overwrites the (lease, period) row as paid.
	UpsertPaid(ctx context.Context, payment *Payment) error
	DetachLease(ctx context.Context, leaseID string) error
	List(ctx context.Context, filter PaymentFilter) ([]*Payment, error)
	// ReceivedForUnits returns rows for the given units whose effective date
	// (paid_date, else created_at) is in [from, to).
	ReceivedForUnits(ctx context.Context, unitIDs []string, from, to time.Time) ([]*Payment, error)
	ListForUnitsInPeriod(ctx context.Context, unitIDs []string, period Period) ([]*Payment, error)
}

// PropertyRepository persists properties.
type PropertyRepository interface {
	Create(ctx context.Context, property *Property) error
	GetByID(ctx context.Context, id string) (*Property, error)
	GetByCode(ctx context.Context, code string) (*Property, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]*Property, error)
	ListByManager(ctx context.Context, managerID string) ([]*Property, error)
	ListLandlordIDs(ctx context.Context) ([]string, error)
}

// AccountRepository persists landlords, managers, tenants and admins.
type AccountRepository interface {
	CreateLandlord(ctx context.Context, l *Landlord) error
	CreateManager(ctx context.Context, m *Manager) error
	CreateAdmin(ctx context.Context, a *Admin) error
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenants(ctx context.Context, ids []string) (map[string]*Tenant, error)
	ListTenantsByProperty(ctx context.Context, propertyID string) ([]*Tenant, error)
	SetTenantUnit(ctx context.Context, tenantID string, propertyID, unitID *string) error
	// FindByLogin looks up an account of the given role by phone or email.
	FindByLogin(ctx context.Context, role Role, login string) (*Account, error)
	Exists(ctx context.Context, role Role, id string) (bool, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListForRecipient(ctx context.Context, role Role, recipientID string, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, role Role, recipientID, id string) error
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Units() UnitRepository
	Leases() LeaseRepository
	Payments() PaymentRepository
	Properties() PropertyRepository
	Accounts() AccountRepository
	Notifications() NotificationRepository
	// WithinTx runs fn against a Store bound to a single transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Clock supplies the current time; services take one so tests can pin dates.
type Clock func() time.Time
