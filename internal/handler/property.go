package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/service"
)

// PropertyHandler serves properties, their units and their tenants.
type PropertyHandler struct {
	unitService   *service.UnitService
	tenantService *service.TenantService
	logger        *slog.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(units *service.UnitService, tenants *service.TenantService, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{unitService: units, tenantService: tenants, logger: logger}
}

type CreatePropertyRequest struct {
	LandlordID string  `json:"landlord_id"`
	ManagerID  *string `json:"manager_id"`
	Name       string  `json:"name" validate:"required,max=160"`
	Address    string  `json:"address" validate:"max=255"`
}

type CreateUnitRequest struct {
	PropertyID string          `json:"property_id" validate:"required"`
	Number     string          `json:"number" validate:"required,max=32"`
	RentAmount decimal.Decimal `json:"rent_amount"`
}

type UpdateUnitRequest struct {
	Number     *string          `json:"number" validate:"omitempty,max=32"`
	RentAmount *decimal.Decimal `json:"rent_amount"`
}

type CreateTenantRequest struct {
	PropertyID string `json:"property_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required"`
}

// CreateProperty handles POST /api/properties
func (h *PropertyHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req CreatePropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	prop, err := h.unitService.CreateProperty(r.Context(), id, service.CreatePropertyInput{
		LandlordID: req.LandlordID,
		ManagerID:  req.ManagerID,
		Name:       req.Name,
		Address:    req.Address,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, prop)
}

// ListProperties handles GET /api/properties
func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	props, err := h.unitService.ListProperties(r.Context(), id, r.URL.Query().Get("landlord_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, props)
}

// GetProperty handles GET /api/properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	prop, err := h.unitService.GetProperty(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, prop)
}

// ListPropertyUnits handles GET /api/properties/{id}/units?occupied=
func (h *PropertyHandler) ListPropertyUnits(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	occupied, err := queryBool(r, "occupied")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	units, err := h.unitService.ListUnits(r.Context(), id, r.PathValue("id"), occupied)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, units)
}

// ListPropertyTenants handles GET /api/properties/{id}/tenants
func (h *PropertyHandler) ListPropertyTenants(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	tenants, err := h.tenantService.ListTenants(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, tenants)
}

// CreateUnit handles POST /api/units
func (h *PropertyHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	unit, err := h.unitService.CreateUnit(r.Context(), id, service.CreateUnitInput{
		PropertyID: req.PropertyID,
		Number:     req.Number,
		RentAmount: req.RentAmount,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, unit)
}

// GetUnit handles GET /api/units/{id}
func (h *PropertyHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	unit, err := h.unitService.GetUnit(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, unit)
}

// UpdateUnit handles PATCH /api/units/{id}
func (h *PropertyHandler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	unit, err := h.unitService.UpdateUnit(r.Context(), id, r.PathValue("id"), service.UpdateUnitInput{
		Number:     req.Number,
		RentAmount: req.RentAmount,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, unit)
}

// DeleteUnit handles DELETE /api/units/{id}
func (h *PropertyHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.unitService.DeleteUnit(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTenant handles POST /api/tenants
func (h *PropertyHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tenant, err := h.tenantService.CreateTenant(r.Context(), id, service.CreateTenantInput{
		PropertyID: req.PropertyID,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, tenant)
}

// GetTenant handles GET /api/tenants/{id}
func (h *PropertyHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	tenant, err := h.tenantService.GetTenant(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, tenant)
}
