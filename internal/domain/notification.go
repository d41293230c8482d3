package domain

import "time"

// Notification is an in-app message for one account.
type Notification struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	RecipientID   string    `gorm:"size:36;not null;index:ix_notifications_recipient" json:"recipient_id"`
	RecipientRole Role      `gorm:"size:16;not null;index:ix_notifications_recipient" json:"recipient_role"`
	Title         string    `gorm:"size:160;not null" json:"title"`
	Message       string    `gorm:"size:1000;not null" json:"message"`
	Channel       string    `gorm:"size:16;not null;default:in_app" json:"channel"`
	IsRead        bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}
