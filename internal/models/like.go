package models

import "time"

// Like represents a like on a post. (UserID, PostID) is unique.
type Like struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_user_post_like"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_user_post_like"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
