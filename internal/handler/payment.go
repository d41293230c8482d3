package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/service"
)

// PaymentHandler serves the payment ledger endpoints
type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{paymentService: payments, logger: logger}
}

type CreatePaymentRequest struct {
	TenantID  string          `json:"tenant_id" validate:"required"`
	UnitID    string          `json:"unit_id" validate:"required"`
	LeaseID   *string         `json:"lease_id"`
	Amount    decimal.Decimal `json:"amount"`
	Period    domain.Period   `json:"period"`
	Status    string          `json:"status" validate:"omitempty,oneof=pending paid overdue"`
	PaidDate  *string         `json:"paid_date"`
	Reference *string         `json:"reference" validate:"omitempty,max=64"`
}

type UpdatePaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Period    *domain.Period   `json:"period"`
	Status    *string          `json:"status" validate:"omitempty,oneof=pending paid overdue"`
	PaidDate  *string          `json:"paid_date"`
	Reference *string          `json:"reference" validate:"omitempty,max=64"`
}

// RecordPaymentRequest marks a lease's period as paid outside the gateway.
type RecordPaymentRequest struct {
	LeaseID  string          `json:"lease_id" validate:"required"`
	Period   domain.Period   `json:"period"`
	Amount   decimal.Decimal `json:"amount"`
	PaidDate *string         `json:"paid_date"`
}

// Create handles POST /api/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	paid, err := parseDate("paid_date", req.PaidDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payment, err := h.paymentService.CreatePayment(r.Context(), id, service.CreatePaymentInput{
		TenantID:  req.TenantID,
		UnitID:    req.UnitID,
		LeaseID:   req.LeaseID,
		Amount:    req.Amount,
		Period:    req.Period,
		Status:    domain.PaymentStatus(req.Status),
		PaidDate:  paid,
		Reference: req.Reference,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, payment)
}

// Record handles POST /api/payments/record
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	paid, err := parseDate("paid_date", req.PaidDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payment, err := h.paymentService.RecordManualPayment(r.Context(), id, req.LeaseID, req.Period, req.Amount, paid)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, payment)
}

// List handles GET /api/payments?tenant_id=&unit_id=&lease_id=&from=&to=
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	payments, err := h.paymentService.ListPayments(r.Context(), id, domain.PaymentFilter{
		TenantID: q.Get("tenant_id"),
		UnitID:   q.Get("unit_id"),
		LeaseID:  q.Get("lease_id"),
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, payments)
}

// Get handles GET /api/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	payment, err := h.paymentService.GetPayment(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, payment)
}

// Update handles PATCH /api/payments/{id}
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	paid, err := parseDate("paid_date", req.PaidDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := service.UpdatePaymentInput{
		Amount:    req.Amount,
		Period:    req.Period,
		PaidDate:  paid,
		Reference: req.Reference,
	}
	if req.Status != nil {
		st := domain.PaymentStatus(*req.Status)
		in.Status = &st
	}

	payment, err := h.paymentService.UpdatePayment(r.Context(), id, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, payment)
}

// Delete handles DELETE /api/payments/{id}
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.paymentService.DeletePayment(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
