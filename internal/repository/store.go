package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// Store implements domain.Store over a GORM handle. A Store created inside
// WithinTx is bound to that transaction.
type Store struct {
	db            *gorm.DB
	logger        *slog.Logger
	units         *UnitRepository
	leases        *LeaseRepository
	payments      *PaymentRepository
	properties    *PropertyRepository
	accounts      *AccountRepository
	notifications *NotificationRepository
}

// NewStore creates a store backed by db.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:            db,
		logger:        logger,
		units:         NewUnitRepository(db),
		leases:        NewLeaseRepository(db),
		payments:      NewPaymentRepository(db),
		properties:    NewPropertyRepository(db),
		accounts:      NewAccountRepository(db),
		notifications: NewNotificationRepository(db),
	}
}

func (s *Store) Units() domain.UnitRepository                 { return s.units }
func (s *Store) Leases() domain.LeaseRepository               { return s.leases }
func (s *Store) Payments() domain.PaymentRepository           { return s.payments }
func (s *Store) Properties() domain.PropertyRepository        { return s.properties }
func (s *Store) Accounts() domain.AccountRepository           { return s.accounts }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }

// WithinTx runs fn in a database transaction. Returning an error rolls back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, s.logger))
	})
}

// Ping checks that the underlying database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
