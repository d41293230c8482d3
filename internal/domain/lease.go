package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lease ties a tenant to a unit. At most one active lease exists per unit,
// enforced by a partial unique index on leases(unit_id) where active.
type Lease struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	TenantID   string          `gorm:"size:36;not null;index" json:"tenant_id"`
	UnitID     string          `gorm:"size:36;not null;index" json:"unit_id"`
	StartDate  time.Time       `gorm:"not null" json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	RentAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rent_amount"`
	Active     bool            `gorm:"not null" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LeaseFilter narrows lease listings. Zero fields are ignored.
type LeaseFilter struct {
	TenantID string
	UnitID   string
	UnitIDs  []string // restricts results to these units when non-nil
	Active   *bool
	Limit    int
	Offset   int
}
