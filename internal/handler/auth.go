package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/service"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRequest is a landlord or manager sign-up.
type RegisterRequest struct {
	Role     string `json:"role" validate:"required,oneof=landlord manager"`
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterTenantRequest is a tenant sign-up against a property code.
type RegisterTenantRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Phone        string `json:"phone" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"required"`
	PropertyCode string `json:"property_code" validate:"required"`
	UnitNumber   string `json:"unit_number" validate:"required"`
}

// LoginRequest authenticates by phone or email within a role.
type LoginRequest struct {
	Role     string `json:"role" validate:"required,oneof=landlord manager tenant admin"`
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Register(r.Context(), domain.Role(req.Role), service.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, result)
}

// RegisterTenant handles POST /api/auth/register/tenant
func (h *AuthHandler) RegisterTenant(w http.ResponseWriter, r *http.Request) {
	var req RegisterTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.RegisterTenant(r.Context(), service.RegisterTenantInput{
		RegisterInput: service.RegisterInput{
			Name:     req.Name,
			Phone:    req.Phone,
			Email:    req.Email,
			Password: req.Password,
		},
		PropertyCode: req.PropertyCode,
		UnitNumber:   req.UnitNumber,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), domain.Role(req.Role), req.Login, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
