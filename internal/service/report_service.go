package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security"
)

// arrearsEpsilon keeps rounding noise out of the arrears list.
var arrearsEpsilon = decimal.RequireFromString("0.001")

// Unit payment states reported by PropertyStatus.
const (
	UnitStatusVacant  = "vacant"
	UnitStatusPaid    = "paid"
	UnitStatusPartial = "partial"
	UnitStatusUnpaid  = "unpaid"
)

// ReportService computes expected, received and pending rent per month.
//
// Expected rent is the unit's current rent when the unit has an active lease;
// vacant units expect nothing. Received rent is every payment whose paid_date
// (or created_at when no paid_date is set) falls inside the month, except
// gateway charges still awaiting confirmation.
type ReportService struct {
	Deps
}

// NewReportService creates a new report service
func NewReportService(deps Deps) *ReportService {
	return &ReportService{Deps: deps.withDefaults()}
}

// MonthlySummary is the reconciliation of one landlord's properties for a month.
type MonthlySummary struct {
	LandlordID    string            `json:"landlord_id"`
	Period        domain.Period     `json:"period"`
	ExpectedTotal decimal.Decimal   `json:"expected_total"`
	ReceivedTotal decimal.Decimal   `json:"received_total"`
	PendingTotal  decimal.Decimal   `json:"pending_total"`
	Properties    []PropertySummary `json:"properties"`
	Arrears       []ArrearsRow      `json:"arrears"`
}

type PropertySummary struct {
	PropertyID string          `json:"property_id"`
	Name       string          `json:"name"`
	Expected   decimal.Decimal `json:"expected"`
	Received   decimal.Decimal `json:"received"`
	Pending    decimal.Decimal `json:"pending"`
	Units      []UnitLine      `json:"units"`
}

type UnitLine struct {
	UnitID   string          `json:"unit_id"`
	Number   string          `json:"number"`
	Occupied bool            `json:"occupied"`
	Expected decimal.Decimal `json:"expected"`
	Received decimal.Decimal `json:"received"`
	Pending  decimal.Decimal `json:"pending"`
}

// ArrearsRow is a tenant who has paid less than the rent of their active
// leases for the month. LeaseID, UnitID and PropertyID name the tenant's
// first lease; LeaseIDs and UnitNumber cover all of them.
type ArrearsRow struct {
	TenantID   string          `json:"tenant_id"`
	TenantName string          `json:"tenant_name"`
	Phone      string          `json:"phone"`
	LeaseID    string          `json:"lease_id"`
	LeaseIDs   []string        `json:"lease_ids"`
	UnitID     string          `json:"unit_id"`
	UnitNumber string          `json:"unit_number"`
	PropertyID string          `json:"property_id"`
	Expected   decimal.Decimal `json:"expected"`
	Paid       decimal.Decimal `json:"paid"`
	Balance    decimal.Decimal `json:"balance"`
}

// UnitStatus is one row of the property status board.
type UnitStatus struct {
	UnitID     string          `json:"unit_id"`
	Number     string          `json:"number"`
	TenantID   string          `json:"tenant_id,omitempty"`
	TenantName string          `json:"tenant_name,omitempty"`
	LeaseID    string          `json:"lease_id,omitempty"`
	Expected   decimal.Decimal `json:"expected"`
	Paid       decimal.Decimal `json:"paid"`
	Status     string          `json:"status"`
}

// PropertyStatusReport lists each unit's payment state for a billing period.
type PropertyStatusReport struct {
	PropertyID string        `json:"property_id"`
	Name       string        `json:"name"`
	Period     domain.Period `json:"period"`
	Units      []UnitStatus  `json:"units"`
}

// TenantOverview is the tenant's own view of their lease and current month.
type TenantOverview struct {
	TenantID       string            `json:"tenant_id"`
	Name           string            `json:"name"`
	Period         domain.Period     `json:"period"`
	Lease          *domain.Lease     `json:"lease,omitempty"`
	Unit           *domain.Unit      `json:"unit,omitempty"`
	PropertyName   string            `json:"property_name,omitempty"`
	Expected       decimal.Decimal   `json:"expected"`
	Paid           decimal.Decimal   `json:"paid"`
	Balance        decimal.Decimal   `json:"balance"`
	Status         string            `json:"status"`
	RecentPayments []*domain.Payment `json:"recent_payments"`
}

// LandlordMonthlySummary reconciles every property of the landlord for the
// given month. Managers only see the properties they run.
func (s *ReportService) LandlordMonthlySummary(ctx context.Context, actor domain.Identity, landlordID string, year, month int) (*MonthlySummary, error) {
	period, err := domain.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	props, err := s.landlordProperties(ctx, actor, landlordID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, landlordID, props, period)
}

// PropertyMonthlySummary reconciles a single property for the given month.
func (s *ReportService) PropertyMonthlySummary(ctx context.Context, actor domain.Identity, propertyID string, year, month int) (*MonthlySummary, error) {
	period, err := domain.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	prop, err := s.authorizedProperty(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, prop.LandlordID, []*domain.Property{prop}, period)
}

// ReminderRecipients returns the landlord's arrears rows for the month.
func (s *ReportService) ReminderRecipients(ctx context.Context, actor domain.Identity, landlordID string, year, month int) ([]ArrearsRow, error) {
	summary, err := s.LandlordMonthlySummary(ctx, actor, landlordID, year, month)
	if err != nil {
		return nil, err
	}
	return summary.Arrears, nil
}

// PropertyStatus reports, per unit, what was paid against the billing
// period. Unlike the monthly summary it matches payments by their period
// label rather than by date received.
func (s *ReportService) PropertyStatus(ctx context.Context, actor domain.Identity, propertyID string, period domain.Period) (*PropertyStatusReport, error) {
	if period.IsZero() {
		return nil, domain.Validationf("period is required")
	}
	prop, err := s.authorizedProperty(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	units, err := s.Store.Units().ListByProperty(ctx, prop.ID, nil)
	if err != nil {
		return nil, err
	}
	ids := unitIDs(units)

	leases, err := s.Store.Leases().ActiveForUnits(ctx, ids)
	if err != nil {
		return nil, err
	}
	leaseByUnit := make(map[string]*domain.Lease, len(leases))
	tenantIDs := make([]string, 0, len(leases))
	for _, l := range leases {
		if _, seen := leaseByUnit[l.UnitID]; !seen {
			leaseByUnit[l.UnitID] = l
			tenantIDs = append(tenantIDs, l.TenantID)
		}
	}
	tenants, err := s.Store.Accounts().GetTenants(ctx, tenantIDs)
	if err != nil {
		return nil, err
	}
	payments, err := s.Store.Payments().ListForUnitsInPeriod(ctx, ids, period)
	if err != nil {
		return nil, err
	}
	paid := make(map[string]decimal.Decimal, len(units))
	for _, p := range payments {
		if p.CountsAsReceived() {
			paid[p.UnitID] = paid[p.UnitID].Add(p.Amount)
		}
	}

	report := &PropertyStatusReport{PropertyID: prop.ID, Name: prop.Name, Period: period, Units: make([]UnitStatus, 0, len(units))}
	for _, u := range units {
		row := UnitStatus{UnitID: u.ID, Number: u.Number, Expected: decimal.Zero, Paid: paid[u.ID].Round(2)}
		lease, ok := leaseByUnit[u.ID]
		if !ok {
			row.Status = UnitStatusVacant
			report.Units = append(report.Units, row)
			continue
		}
		row.LeaseID = lease.ID
		row.TenantID = lease.TenantID
		if t, ok := tenants[lease.TenantID]; ok {
			row.TenantName = t.Name
		}
		row.Expected = lease.RentAmount.Round(2)
		row.Status = paymentState(lease.RentAmount, paid[u.ID])
		report.Units = append(report.Units, row)
	}
	return report, nil
}

// TenantOverview summarises the calling tenant's lease and the current month.
func (s *ReportService) TenantOverview(ctx context.Context, actor domain.Identity) (*TenantOverview, error) {
	if actor.Role != domain.RoleTenant {
		return nil, domain.Forbiddenf("tenant overview is only available to tenants")
	}
	tenant, err := s.Store.Accounts().GetTenant(ctx, actor.SubjectID)
	if err != nil {
		return nil, err
	}
	period := domain.PeriodOf(s.Clock())
	out := &TenantOverview{
		TenantID:       tenant.ID,
		Name:           tenant.Name,
		Period:         period,
		Expected:       decimal.Zero,
		Paid:           decimal.Zero,
		Balance:        decimal.Zero,
		Status:         UnitStatusVacant,
		RecentPayments: []*domain.Payment{},
	}

	recent, err := s.Store.Payments().List(ctx, domain.PaymentFilter{TenantID: tenant.ID, Limit: 12})
	if err != nil {
		return nil, err
	}
	if recent != nil {
		out.RecentPayments = recent
	}

	lease, err := s.Store.Leases().ActiveForTenant(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return out, nil
	}
	unit, prop, err := unitWithProperty(ctx, s.Store, lease.UnitID)
	if err != nil {
		return nil, err
	}
	out.Lease = lease
	out.Unit = unit
	out.PropertyName = prop.Name

	row, err := s.Store.Payments().GetByLeasePeriod(ctx, lease.ID, period)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	if row != nil && row.CountsAsReceived() {
		paid = row.Amount
	}
	out.Expected = lease.RentAmount.Round(2)
	out.Paid = paid.Round(2)
	out.Balance = nonNegative(lease.RentAmount.Sub(paid)).Round(2)
	out.Status = paymentState(lease.RentAmount, paid)
	return out, nil
}

func (s *ReportService) landlordProperties(ctx context.Context, actor domain.Identity, landlordID string) ([]*domain.Property, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermReportRead); err != nil {
		return nil, err
	}
	if landlordID == "" {
		return nil, domain.Validationf("landlord_id is required")
	}
	if actor.Role == domain.RoleLandlord && actor.SubjectID != landlordID {
		return nil, domain.Forbiddenf("access denied: not your report")
	}
	props, err := s.Store.Properties().ListByLandlord(ctx, landlordID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleManager {
		return props, nil
	}
	managed := props[:0]
	for _, p := range props {
		if p.ManagedBy(actor) {
			managed = append(managed, p)
		}
	}
	return managed, nil
}

func (s *ReportService) authorizedProperty(ctx context.Context, actor domain.Identity, propertyID string) (*domain.Property, error) {
	if err := s.Authz.ValidatePermission(actor.Role, security.PermReportRead); err != nil {
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

func (s *ReportService) summarize(ctx context.Context, landlordID string, props []*domain.Property, period domain.Period) (*MonthlySummary, error) {
	from, to := period.Bounds()
	summary := &MonthlySummary{
		LandlordID: landlordID,
		Period:     period,
		Properties: make([]PropertySummary, 0, len(props)),
		Arrears:    []ArrearsRow{},
	}

	units, err := s.Store.Units().ListByProperties(ctx, propertyIDs(props))
	if err != nil {
		return nil, err
	}
	ids := unitIDs(units)

	leases, err := s.Store.Leases().ActiveForUnits(ctx, ids)
	if err != nil {
		return nil, err
	}
	hasLease := make(map[string]bool, len(leases))
	for _, l := range leases {
		hasLease[l.UnitID] = true
	}

	received, err := s.Store.Payments().ReceivedForUnits(ctx, ids, from, to)
	if err != nil {
		return nil, err
	}
	receivedByUnit := make(map[string]decimal.Decimal, len(units))
	for _, p := range received {
		if p.CountsAsReceived() {
			receivedByUnit[p.UnitID] = receivedByUnit[p.UnitID].Add(p.Amount)
		}
	}

	unitsByProperty := make(map[string][]*domain.Unit, len(props))
	unitByID := make(map[string]*domain.Unit, len(units))
	for _, u := range units {
		unitsByProperty[u.PropertyID] = append(unitsByProperty[u.PropertyID], u)
		unitByID[u.ID] = u
	}

	expectedTotal, receivedTotal := decimal.Zero, decimal.Zero
	for _, prop := range props {
		ps := PropertySummary{PropertyID: prop.ID, Name: prop.Name, Units: []UnitLine{}}
		propExpected, propReceived := decimal.Zero, decimal.Zero
		for _, u := range unitsByProperty[prop.ID] {
			expected := decimal.Zero
			if hasLease[u.ID] {
				expected = u.RentAmount
			}
			got := receivedByUnit[u.ID]
			ps.Units = append(ps.Units, UnitLine{
				UnitID:   u.ID,
				Number:   u.Number,
				Occupied: u.Occupied,
				Expected: expected.Round(2),
				Received: got.Round(2),
				Pending:  nonNegative(expected.Sub(got)).Round(2),
			})
			propExpected = propExpected.Add(expected)
			propReceived = propReceived.Add(got)
		}
		ps.Expected = propExpected.Round(2)
		ps.Received = propReceived.Round(2)
		ps.Pending = nonNegative(propExpected.Sub(propReceived)).Round(2)
		summary.Properties = append(summary.Properties, ps)

		expectedTotal = expectedTotal.Add(propExpected)
		receivedTotal = receivedTotal.Add(propReceived)
	}
	summary.ExpectedTotal = expectedTotal.Round(2)
	summary.ReceivedTotal = receivedTotal.Round(2)
	summary.PendingTotal = nonNegative(expectedTotal.Sub(receivedTotal)).Round(2)

	arrears, err := s.arrears(ctx, leases, unitByID, received)
	if err != nil {
		return nil, err
	}
	summary.Arrears = arrears
	return summary, nil
}

// arrears lists tenants who paid less than the rent of their active leases
// in [from, to), largest balance first. Expected is the sum of the tenant's
// lease rents in this portfolio and paid only counts payments on its units.
// Tenants keep the order of their first lease (created_at) and the sort is
// stable, so ties keep that order.
func (s *ReportService) arrears(ctx context.Context, leases []*domain.Lease, unitByID map[string]*domain.Unit, received []*domain.Payment) ([]ArrearsRow, error) {
	rows := []ArrearsRow{}
	if len(leases) == 0 {
		return rows, nil
	}

	type owing struct {
		row     ArrearsRow
		units   []string
		balance decimal.Decimal
	}
	byTenant := make(map[string]*owing, len(leases))
	var order []*owing
	for _, l := range leases {
		o, ok := byTenant[l.TenantID]
		if !ok {
			o = &owing{row: ArrearsRow{
				TenantID: l.TenantID,
				LeaseID:  l.ID,
				UnitID:   l.UnitID,
				Expected: decimal.Zero,
				Paid:     decimal.Zero,
			}}
			if u, ok := unitByID[l.UnitID]; ok {
				o.row.PropertyID = u.PropertyID
			}
			byTenant[l.TenantID] = o
			order = append(order, o)
		}
		o.row.LeaseIDs = append(o.row.LeaseIDs, l.ID)
		o.row.Expected = o.row.Expected.Add(l.RentAmount)
		if u, ok := unitByID[l.UnitID]; ok {
			o.units = append(o.units, u.Number)
		}
	}

	for _, p := range received {
		if o, ok := byTenant[p.TenantID]; ok && p.CountsAsReceived() {
			o.row.Paid = o.row.Paid.Add(p.Amount)
		}
	}

	tenantIDs := make([]string, 0, len(order))
	for _, o := range order {
		tenantIDs = append(tenantIDs, o.row.TenantID)
	}
	tenants, err := s.Store.Accounts().GetTenants(ctx, tenantIDs)
	if err != nil {
		return nil, err
	}

	var owed []*owing
	for _, o := range order {
		o.balance = o.row.Expected.Sub(o.row.Paid)
		if !o.balance.GreaterThan(arrearsEpsilon) {
			continue
		}
		if t, ok := tenants[o.row.TenantID]; ok {
			o.row.TenantName = t.Name
			o.row.Phone = t.Phone
		}
		o.row.UnitNumber = strings.Join(o.units, ", ")
		o.row.Expected = o.row.Expected.Round(2)
		o.row.Paid = o.row.Paid.Round(2)
		o.row.Balance = o.balance.Round(2)
		owed = append(owed, o)
	}

	sort.SliceStable(owed, func(i, j int) bool {
		return owed[i].balance.GreaterThan(owed[j].balance)
	})
	for _, o := range owed {
		rows = append(rows, o.row)
	}
	return rows, nil
}

func paymentState(expected, paid decimal.Decimal) string {
	switch {
	case !paid.IsPositive():
		return UnitStatusUnpaid
	case paid.LessThan(expected):
		return UnitStatusPartial
	default:
		return UnitStatusPaid
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func unitIDs(units []*domain.Unit) []string {
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}
