package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus is the settlement state of a payment row.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// ParsePaymentStatus validates a status name.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return st, nil
	}
	return "", Validationf("status must be one of pending, paid, overdue")
}

// PaymentChannel records how a payment row was created.
type PaymentChannel string

const (
	ChannelManual PaymentChannel = "manual"
	ChannelMpesa  PaymentChannel = "mpesa"
)

// Payment is one rent payment row. (lease_id, period) is unique; rows without
// a lease are allowed and left for later reconciliation.
type Payment struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	TenantID          string          `gorm:"size:36;not null;index" json:"tenant_id"`
	UnitID            string          `gorm:"size:36;not null;index" json:"unit_id"`
	LeaseID           *string         `gorm:"size:36;uniqueIndex:ux_payments_lease_period" json:"lease_id,omitempty"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Period            Period          `gorm:"type:varchar(7);not null;uniqueIndex:ux_payments_lease_period" json:"period"`
	PaidDate          *time.Time      `json:"paid_date,omitempty"`
	Status            PaymentStatus   `gorm:"size:16;not null;default:pending" json:"status"`
	Reference         *string         `gorm:"size:64" json:"reference,omitempty"`
	Channel           PaymentChannel  `gorm:"size:16;not null;default:manual" json:"channel"`
	GatewayCheckoutID *string         `gorm:"size:64;uniqueIndex" json:"gateway_checkout_id,omitempty"`
	GatewayResult     datatypes.JSON  `json:"gateway_result,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PaymentCheckout is one gateway checkout request issued for a payment row.
// A row collects one per initiation, so a callback for an earlier prompt
// still finds it.
type PaymentCheckout struct {
	CheckoutID string    `gorm:"primaryKey;size:64" json:"checkout_id"`
	PaymentID  string    `gorm:"size:36;not null;index" json:"payment_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// EffectiveDate is the date used to place a payment in a reporting month:
// paid_date when known, otherwise created_at.
func (p *Payment) EffectiveDate() time.Time {
	if p.PaidDate != nil {
		return *p.PaidDate
	}
	return p.CreatedAt
}

// CountsAsReceived reports whether the row represents money actually received.
// Gateway rows awaiting confirmation do not.
func (p *Payment) CountsAsReceived() bool {
	return !(p.Channel == ChannelMpesa && p.Status == PaymentPending)
}

// PaymentFilter narrows payment listings. Zero fields are ignored.
// From/To filter created_at inclusively.
type PaymentFilter struct {
	TenantID string
	UnitID   string
	LeaseID  string
	UnitIDs  []string // restricts results to these units when non-nil
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
