package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/infrastructure/daraja"
	"github.com/yourorg/rentledger/internal/service"
)

// CallbackParser turns a provider's webhook body into a charge result.
type CallbackParser func(raw []byte) (domain.ChargeResult, error)

// ChargeHandler serves mobile-money initiation, status and provider webhooks
type ChargeHandler struct {
	chargeService *service.ChargeService
	parsers       map[string]CallbackParser
	logger        *slog.Logger
}

// NewChargeHandler creates a charge handler that accepts Daraja callbacks.
func NewChargeHandler(charges *service.ChargeService, logger *slog.Logger) *ChargeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChargeHandler{
		chargeService: charges,
		parsers:       map[string]CallbackParser{"daraja": daraja.ParseCallback},
		logger:        logger,
	}
}

type InitiateChargeRequest struct {
	LeaseID string          `json:"lease_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

// WebhookAck is the acknowledgement body Daraja expects.
type WebhookAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Initiate handles POST /api/payments/mpesa/initiate
func (h *ChargeHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	var req InitiateChargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	outcome, err := h.chargeService.InitiateCharge(r.Context(), id, req.LeaseID, req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, outcome)
}

// Status handles GET /api/payments/mpesa/status?lease_id=&period=
func (h *ChargeHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	leaseID := r.URL.Query().Get("lease_id")
	if leaseID == "" {
		writeError(w, r, h.logger, domain.Validationf("lease_id is required"))
		return
	}
	period, err := queryPeriod(r, "period")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payment, err := h.chargeService.ChargeStatus(r.Context(), id, leaseID, period)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, payment)
}

// Webhook handles POST /api/payments/webhooks/{provider}. Unknown checkout
// ids are still acknowledged so the provider stops redelivering them.
func (h *ChargeHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	parse, ok := h.parsers[provider]
	if !ok {
		writeError(w, r, h.logger, domain.NotFoundf("unknown payment provider %q", provider))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, h.logger, domain.Validationf("failed to read callback body: %v", err))
		return
	}
	result, err := parse(raw)
	if err != nil {
		h.logger.Warn("rejected payment callback",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		writeError(w, r, h.logger, err)
		return
	}

	outcome, err := h.chargeService.HandleCallback(r.Context(), result)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("payment callback processed",
		slog.String("provider", provider),
		slog.String("checkout_request_id", result.CheckoutRequestID),
		slog.String("outcome", outcome),
	)
	writeJSON(w, h.logger, http.StatusOK, WebhookAck{ResultCode: 0, ResultDesc: "Accepted"})
}
