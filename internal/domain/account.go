package domain

import "time"

// Credentials are shared by every account type.
type Credentials struct {
	Name         string  `gorm:"size:120;not null" json:"name"`
	Phone        string  `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	Email        *string `gorm:"size:200;uniqueIndex" json:"email,omitempty"`
	PasswordHash string  `gorm:"size:100;not null" json:"-"`
}

// Landlord owns properties.
type Landlord struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Credentials
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager runs properties on behalf of a landlord.
type Manager struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Credentials
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Admin has unrestricted access.
type Admin struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Credentials
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tenant rents a unit. UnitID is a read cache maintained by lease operations;
// the leases table is the source of truth for occupancy.
type Tenant struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Credentials
	PropertyID *string   `gorm:"size:36;index" json:"property_id,omitempty"`
	UnitID     *string   `gorm:"size:36;index" json:"unit_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Account is the role-independent view of a principal used at the auth boundary.
type Account struct {
	ID           string
	Role         Role
	Name         string
	Phone        string
	Email        *string
	PasswordHash string
}
