package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth          *AuthHandler
	Properties    *PropertyHandler
	Leases        *LeaseHandler
	Payments      *PaymentHandler
	Charges       *ChargeHandler
	Reports       *ReportHandler
	Notifications *NotificationHandler
	Health        *HealthHandler
}

// NewMux registers the API routes on a fresh ServeMux.
func NewMux(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/register/tenant", h.Auth.RegisterTenant)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)

	mux.HandleFunc("POST /api/properties", h.Properties.CreateProperty)
	mux.HandleFunc("GET /api/properties", h.Properties.ListProperties)
	mux.HandleFunc("GET /api/properties/{id}", h.Properties.GetProperty)
	mux.HandleFunc("GET /api/properties/{id}/units", h.Properties.ListPropertyUnits)
	mux.HandleFunc("GET /api/properties/{id}/tenants", h.Properties.ListPropertyTenants)

	mux.HandleFunc("POST /api/units", h.Properties.CreateUnit)
	mux.HandleFunc("GET /api/units/{id}", h.Properties.GetUnit)
	mux.HandleFunc("PATCH /api/units/{id}", h.Properties.UpdateUnit)
	mux.HandleFunc("DELETE /api/units/{id}", h.Properties.DeleteUnit)
	mux.HandleFunc("GET /api/units/{id}/lease", h.Leases.ActiveForUnit)

	mux.HandleFunc("POST /api/tenants", h.Properties.CreateTenant)
	mux.HandleFunc("GET /api/tenants/{id}", h.Properties.GetTenant)
	mux.HandleFunc("GET /api/tenants/{id}/lease", h.Leases.ActiveForTenant)

	mux.HandleFunc("POST /api/leases", h.Leases.Create)
	mux.HandleFunc("POST /api/leases/assign", h.Leases.Assign)
	mux.HandleFunc("GET /api/leases", h.Leases.List)
	mux.HandleFunc("GET /api/leases/{id}", h.Leases.Get)
	mux.HandleFunc("PATCH /api/leases/{id}", h.Leases.Update)
	mux.HandleFunc("PATCH /api/leases/{id}/end", h.Leases.End)
	mux.HandleFunc("DELETE /api/leases/{id}", h.Leases.Delete)

	mux.HandleFunc("POST /api/payments", h.Payments.Create)
	mux.HandleFunc("POST /api/payments/record", h.Payments.Record)
	mux.HandleFunc("GET /api/payments", h.Payments.List)
	mux.HandleFunc("GET /api/payments/{id}", h.Payments.Get)
	mux.HandleFunc("PATCH /api/payments/{id}", h.Payments.Update)
	mux.HandleFunc("DELETE /api/payments/{id}", h.Payments.Delete)

	mux.HandleFunc("POST /api/payments/mpesa/initiate", h.Charges.Initiate)
	mux.HandleFunc("GET /api/payments/mpesa/status", h.Charges.Status)
	mux.HandleFunc("POST /api/payments/webhooks/{provider}", h.Charges.Webhook)

	mux.HandleFunc("GET /api/reports/landlord/{id}/monthly-summary", h.Reports.LandlordSummary)
	mux.HandleFunc("GET /api/reports/landlord/{id}/monthly-summary.csv", h.Reports.LandlordSummaryCSV)
	mux.HandleFunc("GET /api/reports/property/{id}/monthly-summary", h.Reports.PropertySummary)
	mux.HandleFunc("GET /api/reports/property/{id}/status", h.Reports.PropertyStatus)
	mux.HandleFunc("GET /api/tenant/overview", h.Reports.TenantOverview)

	mux.HandleFunc("GET /api/notifications", h.Notifications.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.Notifications.MarkRead)
	mux.HandleFunc("POST /api/admin/jobs/rent-reminders", h.Notifications.RunReminders)

	// Health and readiness endpoints (no auth required)
	mux.HandleFunc("GET /healthz", h.Health.Health)
	mux.HandleFunc("GET /readyz", h.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
