package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Channel == "" {
		n.Channel = "in_app"
	}
	return translateError(r.db.WithContext(ctx).Create(n).Error, "notification")
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, role domain.Role, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_role = ? AND recipient_id = ?", role, recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []*domain.Notification
	if err := q.Order("created_at DESC, id").Find(&out).Error; err != nil {
		return nil, translateError(err, "notification")
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, role domain.Role, recipientID, id string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND recipient_role = ? AND recipient_id = ?", id, role, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return translateError(res.Error, "notification")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("notification not found")
	}
	return nil
}
