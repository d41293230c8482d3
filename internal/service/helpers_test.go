package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/repository"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/pkg/database"
)

// june15 pins "today" inside the 2025-06 billing period.
var june15 = time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	store   *repository.Store
	events  *recordingPublisher
	deps    Deps
	leases  *LeaseService
	units   *UnitService
	tenants *TenantService
	pays    *PaymentService
	reports *ReportService
	notes   *NotificationService
	auth    *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewStore(db, nil)
	events := &recordingPublisher{}
	deps := Deps{
		Store:  store,
		Events: events,
		Clock:  func() time.Time { return june15 },
	}.withDefaults()

	h := &harness{store: store, events: events, deps: deps}
	h.leases = NewLeaseService(deps)
	h.units = NewUnitService(deps)
	h.tenants = NewTenantService(deps)
	h.pays = NewPaymentService(deps)
	h.reports = NewReportService(deps)
	h.notes = NewNotificationService(deps, h.reports)
	h.auth = NewAuthService(deps, auth.NewTokenManager("test-secret", "rentledger-test", time.Hour), h.leases)
	return h
}

func asLandlord(l *domain.Landlord) domain.Identity {
	return domain.Identity{SubjectID: l.ID, Role: domain.RoleLandlord}
}

func asTenant(t *domain.Tenant) domain.Identity {
	return domain.Identity{SubjectID: t.ID, Role: domain.RoleTenant}
}

var phoneSeq struct {
	mu sync.Mutex
	n  int
}

func nextPhone() string {
	phoneSeq.mu.Lock()
	defer phoneSeq.mu.Unlock()
	phoneSeq.n++
	return fmt.Sprintf("2547%08d", 10000000+phoneSeq.n)
}

func (h *harness) landlord(t *testing.T, name string) *domain.Landlord {
	t.Helper()
	l := &domain.Landlord{Credentials: domain.Credentials{Name: name, Phone: nextPhone(), PasswordHash: "x"}}
	require.NoError(t, h.store.Accounts().CreateLandlord(context.Background(), l))
	return l
}

func (h *harness) property(t *testing.T, owner *domain.Landlord, name string) *domain.Property {
	t.Helper()
	p, err := h.units.CreateProperty(context.Background(), asLandlord(owner), CreatePropertyInput{Name: name, Address: "Ngong Road"})
	require.NoError(t, err)
	return p
}

func (h *harness) unit(t *testing.T, owner *domain.Landlord, p *domain.Property, number string, rent int64) *domain.Unit {
	t.Helper()
	u, err := h.units.CreateUnit(context.Background(), asLandlord(owner), CreateUnitInput{
		PropertyID: p.ID, Number: number, RentAmount: decimal.NewFromInt(rent),
	})
	require.NoError(t, err)
	return u
}

func (h *harness) tenant(t *testing.T, p *domain.Property, name string) *domain.Tenant {
	t.Helper()
	tn := &domain.Tenant{
		Credentials: domain.Credentials{Name: name, Phone: nextPhone(), PasswordHash: "x"},
		PropertyID:  &p.ID,
	}
	require.NoError(t, h.store.Accounts().CreateTenant(context.Background(), tn))
	return tn
}

func (h *harness) lease(t *testing.T, owner *domain.Landlord, tn *domain.Tenant, u *domain.Unit, rent int64) *domain.Lease {
	t.Helper()
	l, err := h.leases.CreateLease(context.Background(), asLandlord(owner), CreateLeaseInput{
		TenantID: tn.ID, UnitID: u.ID, RentAmount: decimal.NewFromInt(rent),
	})
	require.NoError(t, err)
	return l
}

// requireOccupancyConsistent checks that every unit is occupied exactly when
// it has an active lease.
func (h *harness) requireOccupancyConsistent(t *testing.T, units ...*domain.Unit) {
	t.Helper()
	ctx := context.Background()
	for _, u := range units {
		got, err := h.store.Units().GetByID(ctx, u.ID)
		require.NoError(t, err)
		active, err := h.store.Leases().ActiveForUnit(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, active != nil, got.Occupied, "unit %s", u.Number)
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
