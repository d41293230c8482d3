package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChargeRequest asks the mobile-money provider to prompt a customer for payment.
type ChargeRequest struct {
	MSISDN           string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// ChargeResponse is the provider's synchronous acknowledgement. The
// CheckoutRequestID correlates the later asynchronous callback.
type ChargeResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// PaymentGateway initiates outbound mobile-money charges.
type PaymentGateway interface {
	InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// ChargeResult is the provider-neutral outcome carried by an inbound callback.
type ChargeResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            *decimal.Decimal
	ReceiptNumber     string
	PhoneNumber       string
	Raw               []byte
}

// Succeeded reports whether the provider confirmed the charge.
func (r ChargeResult) Succeeded() bool { return r.ResultCode == 0 }
