package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property groups units owned by one landlord.
type Property struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	LandlordID   string    `gorm:"size:36;not null;index" json:"landlord_id"`
	ManagerID    *string   `gorm:"size:36;index" json:"manager_id,omitempty"`
	Name         string    `gorm:"size:160;not null" json:"name"`
	Address      string    `gorm:"size:255" json:"address"`
	PropertyCode string    `gorm:"size:16;uniqueIndex;not null" json:"property_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ManagedBy reports whether the identity may act on this property.
func (p *Property) ManagedBy(id Identity) bool {
	switch id.Role {
	case RoleAdmin:
		return true
	case RoleLandlord:
		return p.LandlordID == id.SubjectID
	case RoleManager:
		return p.ManagerID != nil && *p.ManagerID == id.SubjectID
	default:
		return false
	}
}

// Unit is a rentable space. Occupied is written only by lease operations.
type Unit struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	PropertyID string          `gorm:"size:36;not null;uniqueIndex:ux_units_property_number" json:"property_id"`
	Number     string          `gorm:"size:32;not null;uniqueIndex:ux_units_property_number" json:"number"`
	RentAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rent_amount"`
	Occupied   bool            `gorm:"not null;default:false" json:"occupied"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
