package repositories

import (
	"context"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/jackc/pgerrcode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines the interface for follow data operations.
// CreateFollow must be an atomic insert-if-absent: of two concurrent calls for
// the same pair exactly one succeeds and the other gets ErrAlreadyExists.
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followedID string) error
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowingIDs(ctx context.Context, userID string) ([]string, error)
	CountFollowers(ctx context.Context, userIDs []string) (map[string]int64, error)
	CountFollowing(ctx context.Context, userIDs []string) (map[string]int64, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

// CreateFollow relies on idx_follower_followed: ON CONFLICT DO NOTHING turns a
// lost race into zero affected rows instead of a second edge.
func (r *PostgresFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(follow)
	if res.Error != nil {
		switch pgErrorCode(res.Error) {
		case pgerrcode.ForeignKeyViolation:
			return ErrUserNotFound
		case pgerrcode.CheckViolation:
			return ErrSelfReference
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresFollowRepository) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFollowNotFound
	}
	return nil
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followed_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("followed_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) CountFollowers(ctx context.Context, userIDs []string) (map[string]int64, error) {
	return r.countGrouped(ctx, "followed_id", userIDs)
}

func (r *PostgresFollowRepository) CountFollowing(ctx context.Context, userIDs []string) (map[string]int64, error) {
	return r.countGrouped(ctx, "follower_id", userIDs)
}

type groupCount struct {
	ID    string
	Count int64
}

// column is always one of the two edge columns, never user input.
func (r *PostgresFollowRepository) countGrouped(ctx context.Context, column string, userIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	db := r.db.WithContext(ctx)
	for _, chunk := range chunkIDs(userIDs, maxInListSize) {
		var rows []groupCount
		err := db.Model(&models.Follow{}).
			Select(column+" AS id, COUNT(*) AS count").
			Where(column+" IN ?", chunk).
			Group(column).
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
