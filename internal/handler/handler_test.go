package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/repository"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/internal/security/middleware"
	"github.com/yourorg/rentledger/internal/service"
	"github.com/yourorg/rentledger/pkg/database"
)

var (
	quiet  = slog.New(slog.NewTextHandler(io.Discard, nil))
	june15 = time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)
)

type stubGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGateway) InitiateCharge(_ context.Context, _ domain.ChargeRequest) (*domain.ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return &domain.ChargeResponse{
		MerchantRequestID: fmt.Sprintf("m-%d", g.calls),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", g.calls),
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type api struct {
	t       *testing.T
	handler http.Handler
	tokens  *auth.TokenManager
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := database.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	deps := service.Deps{
		Store:  repository.NewStore(db, nil),
		Clock:  func() time.Time { return june15 },
		Logger: quiet,
	}
	tm := auth.NewTokenManager("test-secret", "rentledger-test", time.Hour)
	leases := service.NewLeaseService(deps)
	units := service.NewUnitService(deps)
	tenants := service.NewTenantService(deps)
	reports := service.NewReportService(deps)

	mux := NewMux(Handlers{
		Auth:          NewAuthHandler(service.NewAuthService(deps, tm, leases), quiet),
		Properties:    NewPropertyHandler(units, tenants, quiet),
		Leases:        NewLeaseHandler(leases, quiet),
		Payments:      NewPaymentHandler(service.NewPaymentService(deps), quiet),
		Charges:       NewChargeHandler(service.NewChargeService(deps, &stubGateway{}), quiet),
		Reports:       NewReportHandler(reports, quiet),
		Notifications: NewNotificationHandler(service.NewNotificationService(deps, reports), quiet),
		Health:        NewHealthHandler(PingFunc(func(context.Context) error { return nil }), nil, quiet),
	})
	return &api{t: t, handler: middleware.JWTMiddleware(tm, quiet)(mux), tokens: tm}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *api) tokenFor(id domain.Identity) string {
	a.t.Helper()
	token, _, err := a.tokens.GenerateToken(id)
	require.NoError(a.t, err)
	return token
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeAs[ErrorResponse](t, rec).Error.Code
}

// portfolio is a landlord with one property, one unit and one leased tenant.
type portfolio struct {
	landlordToken string
	landlordID    string
	propertyID    string
	unitID        string
	tenantID      string
	leaseID       string
}

func (a *api) portfolio() portfolio {
	t := a.t
	t.Helper()
	var p portfolio

	rec := a.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"role": "landlord", "name": "Wanjiru", "phone": "0711000001", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeAs[service.AuthResult](t, rec)
	p.landlordToken, p.landlordID = reg.Token, reg.AccountID

	rec = a.do(http.MethodPost, "/api/properties", p.landlordToken, map[string]any{"name": "Riverside", "address": "Ngong Road"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p.propertyID = decodeAs[domain.Property](t, rec).ID

	rec = a.do(http.MethodPost, "/api/units", p.landlordToken, map[string]any{"property_id": p.propertyID, "number": "A1", "rent_amount": "10000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p.unitID = decodeAs[domain.Unit](t, rec).ID

	rec = a.do(http.MethodPost, "/api/tenants", p.landlordToken, map[string]any{
		"property_id": p.propertyID, "name": "Otieno", "phone": "0722000002", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p.tenantID = decodeAs[domain.Tenant](t, rec).ID

	rec = a.do(http.MethodPost, "/api/leases", p.landlordToken, map[string]any{"tenant_id": p.tenantID, "unit_id": p.unitID, "rent_amount": "10000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p.leaseID = decodeAs[domain.Lease](t, rec).ID
	return p
}

func TestLandlordLedgerFlow(t *testing.T) {
	a := newAPI(t)
	p := a.portfolio()

	rec := a.do(http.MethodGet, "/api/properties/"+p.propertyID+"/units?occupied=true", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]domain.Unit](t, rec), 1)

	rec = a.do(http.MethodPost, "/api/leases", p.landlordToken, map[string]any{"tenant_id": p.tenantID, "unit_id": p.unitID, "rent_amount": "10000"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))

	rec = a.do(http.MethodPost, "/api/payments/record", p.landlordToken, map[string]any{"lease_id": p.leaseID, "period": "2025-06", "amount": "6000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PaymentPaid, decodeAs[domain.Payment](t, rec).Status)

	rec = a.do(http.MethodGet, "/api/reports/landlord/"+p.landlordID+"/monthly-summary?year=2025&month=6", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decodeAs[service.MonthlySummary](t, rec)
	assert.True(t, decimal.NewFromInt(10000).Equal(summary.ExpectedTotal), summary.ExpectedTotal.String())
	assert.True(t, decimal.NewFromInt(6000).Equal(summary.ReceivedTotal), summary.ReceivedTotal.String())
	assert.True(t, decimal.NewFromInt(4000).Equal(summary.PendingTotal), summary.PendingTotal.String())
	require.Len(t, summary.Arrears, 1)
	assert.Equal(t, p.tenantID, summary.Arrears[0].TenantID)

	rec = a.do(http.MethodGet, "/api/reports/landlord/"+p.landlordID+"/monthly-summary.csv?year=2025&month=6", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "monthly-summary-2025-06.csv")
	assert.Contains(t, rec.Body.String(), "Riverside")

	rec = a.do(http.MethodGet, "/api/reports/property/"+p.propertyID+"/status?period=2025-06", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[service.PropertyStatusReport](t, rec).Units, 1)

	rec = a.do(http.MethodPatch, "/api/leases/"+p.leaseID+"/end", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeAs[domain.Lease](t, rec).Active)

	rec = a.do(http.MethodGet, "/api/properties/"+p.propertyID+"/units?occupied=false", p.landlordToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]domain.Unit](t, rec), 1)

	rec = a.do(http.MethodGet, "/api/units/"+p.unitID+"/lease", p.landlordToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantPaysThroughGateway(t *testing.T) {
	a := newAPI(t)
	p := a.portfolio()

	rec := a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"role": "tenant", "login": "0722000002", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tenantToken := decodeAs[service.AuthResult](t, rec).Token

	rec = a.do(http.MethodPost, "/api/payments/mpesa/initiate", tenantToken, map[string]any{"lease_id": p.leaseID, "amount": 10000})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	outcome := decodeAs[service.ChargeOutcome](t, rec)
	assert.Equal(t, "ws_CO_1", outcome.CheckoutRequestID)
	assert.Equal(t, domain.PaymentPending, outcome.Payment.Status)

	callback := `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,
		"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":10000},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"PhoneNumber","Value":254722000002}]}}}}`
	rec = a.do(http.MethodPost, "/api/payments/webhooks/daraja", "", callback)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, WebhookAck{ResultCode: 0, ResultDesc: "Accepted"}, decodeAs[WebhookAck](t, rec))

	rec = a.do(http.MethodGet, "/api/payments/mpesa/status?lease_id="+p.leaseID+"&period=2025-06", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payment := decodeAs[domain.Payment](t, rec)
	assert.Equal(t, domain.PaymentPaid, payment.Status)
	require.NotNil(t, payment.Reference)
	assert.Equal(t, "NLJ7RT61SV", *payment.Reference)

	rec = a.do(http.MethodGet, "/api/tenant/overview", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	overview := decodeAs[service.TenantOverview](t, rec)
	assert.True(t, overview.Balance.IsZero(), overview.Balance.String())
}

func TestWebhookAcknowledgesUnknownCheckout(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/api/payments/webhooks/daraja", "",
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_missing","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/payments/webhooks/daraja", "", `{"Body":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/payments/webhooks/paypal", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	landlord := a.tokenFor(domain.Identity{SubjectID: "l-1", Role: domain.RoleLandlord})
	tenant := a.tokenFor(domain.Identity{SubjectID: "t-1", Role: domain.RoleTenant})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing body", http.MethodPost, "/api/leases", landlord, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing field", http.MethodPost, "/api/leases", landlord, `{"tenant_id":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", http.MethodPost, "/api/units", landlord, `{"colour":"blue"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad period", http.MethodPost, "/api/payments/record", landlord, `{"lease_id":"x","period":"June"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad date", http.MethodGet, "/api/payments?from=yesterday", landlord, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"report without month", http.MethodGet, "/api/reports/landlord/l-1/monthly-summary?year=2025", landlord, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown lease", http.MethodGet, "/api/leases/nope", landlord, nil, http.StatusNotFound, "NOT_FOUND"},
		{"tenant creating property", http.MethodPost, "/api/properties", tenant, `{"name":"Mine"}`, http.StatusForbidden, "FORBIDDEN"},
		{"tenant running jobs", http.MethodPost, "/api/admin/jobs/rent-reminders", tenant, nil, http.StatusForbidden, "FORBIDDEN"},
		{"no token", http.MethodGet, "/api/leases", "", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong password", http.MethodPost, "/api/auth/login", "", `{"role":"landlord","login":"0711999999","password":"nope-nope"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad role", http.MethodPost, "/api/auth/register", "", `{"role":"tenant","name":"X","phone":"0711000009","password":"password123"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestRunRemindersAsAdmin(t *testing.T) {
	a := newAPI(t)
	a.portfolio()
	admin := a.tokenFor(domain.Identity{SubjectID: "admin-1", Role: domain.RoleAdmin})

	rec := a.do(http.MethodPost, "/api/admin/jobs/rent-reminders", admin, map[string]any{"period": "2025-06"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decodeAs[service.ReminderRun](t, rec)
	assert.Equal(t, 1, run.Landlords)
	assert.Equal(t, 1, run.TenantsReminded)
	assert.Equal(t, 1, run.DigestsSent)
}

func TestWriteErrorHidesUnclassifiedErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/leases", nil)

	rec := httptest.NewRecorder()
	writeError(rec, req, quiet, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	writeError(rec, req, quiet, domain.GatewayError("payment provider request failed", errors.New("timeout")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "GATEWAY_ERROR", errorCode(t, rec))
}

func TestReadiness(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	rec := httptest.NewRecorder()
	NewHealthHandler(ok, nil, quiet).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not configured", decodeAs[ReadinessResponse](t, rec).Checks["redis"])

	rec = httptest.NewRecorder()
	NewHealthHandler(ok, down, quiet).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
