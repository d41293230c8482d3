package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/service"
)

// LeaseHandler serves the lease lifecycle endpoints
type LeaseHandler struct {
	leaseService *service.LeaseService
	logger       *slog.Logger
}

// NewLeaseHandler creates a new lease handler
func NewLeaseHandler(leases *service.LeaseService, logger *slog.Logger) *LeaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaseHandler{leaseService: leases, logger: logger}
}

type CreateLeaseRequest struct {
	TenantID   string          `json:"tenant_id" validate:"required"`
	UnitID     string          `json:"unit_id" validate:"required"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	StartDate  *string         `json:"start_date"`
	EndDate    *string         `json:"end_date"`
	Active     *bool           `json:"active"`
}

type UpdateLeaseRequest struct {
	RentAmount *decimal.Decimal `json:"rent_amount"`
	StartDate  *string          `json:"start_date"`
	EndDate    *string          `json:"end_date"`
	Active     *bool            `json:"active"`
}

type EndLeaseRequest struct {
	EndDate *string `json:"end_date"`
}

type AssignTenantRequest struct {
	TenantID   string          `json:"tenant_id" validate:"required"`
	UnitID     string          `json:"unit_id" validate:"required"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	StartDate  *string         `json:"start_date"`
}

// Create handles POST /api/leases
func (h *LeaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lease, err := h.leaseService.CreateLease(r.Context(), id, service.CreateLeaseInput{
		TenantID:   req.TenantID,
		UnitID:     req.UnitID,
		RentAmount: req.RentAmount,
		StartDate:  start,
		EndDate:    end,
		Active:     req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, lease)
}

// Assign handles POST /api/leases/assign
func (h *LeaseHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req AssignTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lease, err := h.leaseService.AssignExistingTenantToUnit(r.Context(), id, req.TenantID, req.UnitID, req.RentAmount, start)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, lease)
}

// List handles GET /api/leases?tenant_id=&unit_id=&active=
func (h *LeaseHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	leases, err := h.leaseService.ListLeases(r.Context(), id, domain.LeaseFilter{
		TenantID: r.URL.Query().Get("tenant_id"),
		UnitID:   r.URL.Query().Get("unit_id"),
		Active:   active,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, leases)
}

// Get handles GET /api/leases/{id}
func (h *LeaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	lease, err := h.leaseService.GetLease(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lease)
}

// Update handles PATCH /api/leases/{id}
func (h *LeaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lease, err := h.leaseService.UpdateLease(r.Context(), id, r.PathValue("id"), service.UpdateLeaseInput{
		RentAmount: req.RentAmount,
		StartDate:  start,
		EndDate:    end,
		Active:     req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lease)
}

// End handles PATCH /api/leases/{id}/end. The body is optional.
func (h *LeaseHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req EndLeaseRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lease, err := h.leaseService.EndLease(r.Context(), id, r.PathValue("id"), end)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lease)
}

// Delete handles DELETE /api/leases/{id}
func (h *LeaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.leaseService.DeleteLease(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActiveForUnit handles GET /api/units/{id}/lease
func (h *LeaseHandler) ActiveForUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	lease, err := h.leaseService.ActiveLeaseForUnit(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lease)
}

// ActiveForTenant handles GET /api/tenants/{id}/lease
func (h *LeaseHandler) ActiveForTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	lease, err := h.leaseService.ActiveLeaseForTenant(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lease)
}
