package models

import "time"

// Post is a short text post. Tags live in their own table for the relational
// store and are carried here as a plain set.
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);not null;index:idx_posts_author_created,priority:1"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Image     *string   `json:"image"`
	Tags      []string  `json:"tag_list" gorm:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_posts_author_created,priority:2,sort:desc"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostTag attaches one free-text label to a post.
type PostTag struct {
	ID     uint   `gorm:"primaryKey"`
	PostID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_tag"`
	Name   string `gorm:"size:100;not null;index;uniqueIndex:idx_post_tag"`
}

// AnnotatedPost is a post with its like count computed at read time.
type AnnotatedPost struct {
	Post
	LikeCount int64 `json:"like_count"`
}

// PostFilter narrows a post listing. Empty fields do not filter.
type PostFilter struct {
	Tag    string
	Search string
}

// PostPage selects one ordered page of a filtered post listing. OrderBy is
// created_at or like_count; ties always fall back to created_at descending,
// then id descending.
type PostPage struct {
	PostFilter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// PostInput carries the fields of a new post.
type PostInput struct {
	Text  string
	Image *string
	Tags  []string
}

// PostUpdate carries a partial update; nil fields are left untouched.
type PostUpdate struct {
	Text  *string
	Image *string
	Tags  *[]string
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Text  string   `json:"text" validate:"required"`
	Image *string  `json:"image,omitempty" validate:"omitempty,max=500"`
	Tags  []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=100"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Text  *string   `json:"text,omitempty"`
	Image *string   `json:"image,omitempty" validate:"omitempty,max=500"`
	Tags  *[]string `json:"tags,omitempty"`
}
