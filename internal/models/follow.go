package models

import "time"

// Follow is a directed edge: FollowerID observes FollowedID's posts.
// The composite unique index is what arbitrates concurrent follow requests.
type Follow struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FollowerID string    `json:"follower_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_follower_followed;check:chk_follow_not_self,follower_id <> followed_id"`
	FollowedID string    `json:"followed_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_follower_followed"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `json:"-" gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Followed User `json:"-" gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE"`
}
