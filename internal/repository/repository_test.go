package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db, nil)
}

type fixture struct {
	landlord *domain.Landlord
	property *domain.Property
	unit     *domain.Unit
	tenant   *domain.Tenant
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	l := &domain.Landlord{Credentials: domain.Credentials{Name: "Wanjiru", Phone: "254700000001", PasswordHash: "x"}}
	require.NoError(t, s.Accounts().CreateLandlord(ctx, l))
	p := &domain.Property{LandlordID: l.ID, Name: "Riverside", PropertyCode: "RIVER001"}
	require.NoError(t, s.Properties().Create(ctx, p))
	u := &domain.Unit{PropertyID: p.ID, Number: "A1", RentAmount: decimal.NewFromInt(10000)}
	require.NoError(t, s.Units().Create(ctx, u))
	tn := &domain.Tenant{Credentials: domain.Credentials{Name: "Otieno", Phone: "254711111111", PasswordHash: "x"}}
	require.NoError(t, s.Accounts().CreateTenant(ctx, tn))
	return fixture{landlord: l, property: p, unit: u, tenant: tn}
}

func TestPartialIndexRejectsSecondActiveLease(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	first := &domain.Lease{TenantID: f.tenant.ID, UnitID: f.unit.ID, StartDate: time.Now().UTC(), RentAmount: decimal.NewFromInt(10000), Active: true}
	require.NoError(t, s.Leases().Create(ctx, first))

	second := &domain.Lease{TenantID: f.tenant.ID, UnitID: f.unit.ID, StartDate: time.Now().UTC(), RentAmount: decimal.NewFromInt(10000), Active: true}
	err := s.Leases().Create(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// Inactive history rows are unconstrained.
	history := &domain.Lease{TenantID: f.tenant.ID, UnitID: f.unit.ID, StartDate: time.Now().UTC(), RentAmount: decimal.NewFromInt(9000), Active: false}
	require.NoError(t, s.Leases().Create(ctx, history))

	active, err := s.Leases().ActiveForUnit(ctx, f.unit.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
}

func TestActiveLookupReturnsNilWhenVacant(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)

	lease, err := s.Leases().ActiveForUnit(context.Background(), f.unit.ID)
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestPaymentLeasePeriodUnique(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	lease := &domain.Lease{TenantID: f.tenant.ID, UnitID: f.unit.ID, StartDate: time.Now().UTC(), RentAmount: decimal.NewFromInt(10000), Active: true}
	require.NoError(t, s.Leases().Create(ctx, lease))

	period := domain.Period{Year: 2025, Month: time.June}
	p1 := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, LeaseID: &lease.ID, Amount: decimal.NewFromInt(4000), Period: period, Status: domain.PaymentPending, Channel: domain.ChannelManual}
	require.NoError(t, s.Payments().Create(ctx, p1))

	p2 := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, LeaseID: &lease.ID, Amount: decimal.NewFromInt(6000), Period: period, Status: domain.PaymentPending, Channel: domain.ChannelManual}
	err := s.Payments().Create(ctx, p2)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// Orphaned rows do not collide with each other.
	o1 := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, Amount: decimal.NewFromInt(100), Period: period, Status: domain.PaymentPaid, Channel: domain.ChannelManual}
	o2 := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, Amount: decimal.NewFromInt(200), Period: period, Status: domain.PaymentPaid, Channel: domain.ChannelManual}
	require.NoError(t, s.Payments().Create(ctx, o1))
	require.NoError(t, s.Payments().Create(ctx, o2))
}

func TestUpsertPaidOverwritesInPlace(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	lease := &domain.Lease{TenantID: f.tenant.ID, UnitID: f.unit.ID, StartDate: time.Now().UTC(), RentAmount: decimal.NewFromInt(10000), Active: true}
	require.NoError(t, s.Leases().Create(ctx, lease))

	period := domain.Period{Year: 2025, Month: time.June}
	d1 := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Payments().UpsertPaid(ctx, &domain.Payment{
		TenantID: f.tenant.ID, UnitID: f.unit.ID, LeaseID: &lease.ID,
		Amount: decimal.NewFromInt(4000), Period: period, PaidDate: &d1, Channel: domain.ChannelManual,
	}))
	first, err := s.Payments().GetByLeasePeriod(ctx, lease.ID, period)
	require.NoError(t, err)
	require.NotNil(t, first)

	d2 := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Payments().UpsertPaid(ctx, &domain.Payment{
		TenantID: f.tenant.ID, UnitID: f.unit.ID, LeaseID: &lease.ID,
		Amount: decimal.NewFromInt(10000), Period: period, PaidDate: &d2, Channel: domain.ChannelManual,
	}))

	rows, err := s.Payments().List(ctx, domain.PaymentFilter{LeaseID: lease.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, domain.PaymentPaid, rows[0].Status)
	require.NotNil(t, rows[0].PaidDate)
	assert.True(t, rows[0].PaidDate.Equal(d2))
}

func TestCheckoutIDsResolveToTheirPayment(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	latest := "ws_CO_2"
	p := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, Amount: decimal.NewFromInt(10000), Period: domain.Period{Year: 2025, Month: time.June}, Status: domain.PaymentPending, Channel: domain.ChannelMpesa, GatewayCheckoutID: &latest}
	require.NoError(t, s.Payments().Create(ctx, p))
	require.NoError(t, s.Payments().AddCheckout(ctx, p.ID, "ws_CO_1"))
	require.NoError(t, s.Payments().AddCheckout(ctx, p.ID, "ws_CO_2"))

	for _, id := range []string{"ws_CO_1", "ws_CO_2"} {
		got, err := s.Payments().GetByCheckoutID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got, id)
		assert.Equal(t, p.ID, got.ID)
	}

	missing, err := s.Payments().GetByCheckoutID(ctx, "ws_CO_9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.Payments().AddCheckout(ctx, p.ID, "ws_CO_1")
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, s.Payments().Delete(ctx, p.ID))
	var left int64
	require.NoError(t, s.db.Model(&domain.PaymentCheckout{}).Count(&left).Error)
	assert.Zero(t, left)
}

func TestReceivedUsesPaidDateThenCreatedAt(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	june := domain.Period{Year: 2025, Month: time.June}
	inJune := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	firstOfJuly := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mk := func(amount int64, period domain.Period, paid *time.Time) *domain.Payment {
		p := &domain.Payment{TenantID: f.tenant.ID, UnitID: f.unit.ID, Amount: decimal.NewFromInt(amount), Period: period, PaidDate: paid, Status: domain.PaymentPaid, Channel: domain.ChannelManual}
		require.NoError(t, s.Payments().Create(ctx, p))
		return p
	}
	mk(1000, june, &inJune)
	mk(2000, june, &firstOfJuly)
	noDate := mk(3000, june, nil)
	// Pin created_at into June for the row without a paid date.
	require.NoError(t, s.db.Model(noDate).Update("created_at", time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)).Error)

	from, to := june.Bounds()
	rows, err := s.Payments().ReceivedForUnits(ctx, []string{f.unit.ID}, from, to)
	require.NoError(t, err)

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(4000)), "got %s", total)
}

func TestUnitReferencesAndOccupancy(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	n, err := s.Units().References(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Units().SetOccupied(ctx, f.unit.ID, true))
	u, err := s.Units().GetByID(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.True(t, u.Occupied)

	require.NoError(t, s.Accounts().SetTenantUnit(ctx, f.tenant.ID, &f.property.ID, &f.unit.ID))
	n, err = s.Units().References(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = s.Units().SetOccupied(ctx, "missing", true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFindByLoginPerRole(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	acc, err := s.Accounts().FindByLogin(ctx, domain.RoleLandlord, "254700000001")
	require.NoError(t, err)
	assert.Equal(t, f.landlord.ID, acc.ID)
	assert.Equal(t, domain.RoleLandlord, acc.Role)

	_, err = s.Accounts().FindByLogin(ctx, domain.RoleTenant, "254700000001")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestWithinTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx domain.Store) error {
		if err := tx.Units().SetOccupied(ctx, f.unit.ID, true); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := s.Units().GetByID(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.False(t, u.Occupied)
}

func TestPropertyCodeLookupIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)

	p, err := s.Properties().GetByCode(context.Background(), "  river001 ")
	require.NoError(t, err)
	assert.Equal(t, f.property.ID, p.ID)

	u, err := s.Units().GetByNumber(context.Background(), f.property.ID, "a1")
	require.NoError(t, err)
	assert.Equal(t, f.unit.ID, u.ID)
}
