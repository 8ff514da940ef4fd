package notify

import "time"

// SubjectFollowCreated carries FollowCreatedEvent payloads.
const SubjectFollowCreated = "social.follow.created"

// FollowCreatedEvent is published once per new follow edge.
type FollowCreatedEvent struct {
	FollowerID string    `json:"follower_id"`
	FollowedID string    `json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}
