package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// Models lists every table owned by the service, in dependency order.
var Models = []any{
	&domain.Landlord{},
	&domain.Manager{},
	&domain.Admin{},
	&domain.Property{},
	&domain.Unit{},
	&domain.Tenant{},
	&domain.Lease{},
	&domain.Payment{},
	&domain.PaymentCheckout{},
	&domain.Notification{},
}

// Partial indexes cannot be declared through struct tags. Both Postgres and
// SQLite accept this syntax.
var indexStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_leases_unit_active ON leases (unit_id) WHERE active`,
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range indexStatements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
