package models

import "time"

const NotificationTypeFollow = "follow"

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"` // follow
	ActorID     string    `json:"actor_id" gorm:"type:varchar(36);index"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(36);index"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
