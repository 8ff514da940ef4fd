package repositories

import (
	"context"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for like data operations.
// CreateLike has the same one-winner guarantee as FollowRepository.CreateFollow.
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, userID, postID string) error
	GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error)
	CountLikesByPostIDs(ctx context.Context, postIDs []string) (map[string]int64, error)
	DeleteLikesByPostID(ctx context.Context, postID string) error
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike creates a new like in PostgreSQL
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// DeleteLike deletes a like from PostgreSQL
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, userID, postID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLikeNotFound
	}
	return nil
}

// GetLikesByPostID retrieves all likes for a specific post, newest first
func (r *PostgresLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error) {
	likes := []models.Like{}
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at DESC, id DESC").Find(&likes).Error; err != nil {
		return nil, err
	}
	return likes, nil
}

// CountLikesByPostIDs aggregates like counts for a batch of posts, one query
// per chunk of ids. Posts without likes are absent from the map.
func (r *PostgresLikeRepository) CountLikesByPostIDs(ctx context.Context, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	db := r.db.WithContext(ctx)
	for _, chunk := range chunkIDs(postIDs, maxInListSize) {
		var rows []groupCount
		err := db.Model(&models.Like{}).
			Select("post_id AS id, COUNT(*) AS count").
			Where("post_id IN ?", chunk).
			Group("post_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.ID] = row.Count
		}
	}
	return counts, nil
}

func (r *PostgresLikeRepository) DeleteLikesByPostID(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Like{}).Error
}
