package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/minitwitter/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	// ListPostsByAuthors returns every post written by one of authorIDs that
	// passes filter, newest first with ties broken by id descending.
	ListPostsByAuthors(ctx context.Context, authorIDs []string, filter models.PostFilter) ([]models.Post, error)
}

// FeedReader is implemented by post stores that can filter, count likes,
// order and page a feed without loading the authors' whole history. It
// returns the page and the number of posts matching the filter.
type FeedReader interface {
	ReadFeed(ctx context.Context, authorIDs []string, page models.PostPage) ([]models.AnnotatedPost, int64, error)
}

// PostgresPostRepository implements PostRepository for PostgreSQL, keeping
// tags in the post_tags table.
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return insertTags(tx, post.ID, post.Tags)
	})
}

func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	db := r.db.WithContext(ctx)
	var post models.Post
	if err := db.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	posts := []models.Post{post}
	if err := loadTags(db, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// UpdatePost overwrites text, image and the full tag set.
func (r *PostgresPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]any{
			"text":       post.Text,
			"image":      post.Image,
			"updated_at": post.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		return insertTags(tx, post.ID, post.Tags)
	})
}

func (r *PostgresPostRepository) DeletePost(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
}

func (r *PostgresPostRepository) ListPostsByAuthors(ctx context.Context, authorIDs []string, filter models.PostFilter) ([]models.Post, error) {
	posts := []models.Post{}
	if len(authorIDs) == 0 {
		return posts, nil
	}
	db := r.db.WithContext(ctx)
	if err := filteredPosts(db, authorIDs, filter).Order("created_at DESC, id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	if err := loadTags(db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ReadFeed counts the matching posts, then reads one page with like counts
// aggregated by a LEFT JOIN on likes. Tags are loaded for that page only.
func (r *PostgresPostRepository) ReadFeed(ctx context.Context, authorIDs []string, page models.PostPage) ([]models.AnnotatedPost, int64, error) {
	results := []models.AnnotatedPost{}
	if len(authorIDs) == 0 {
		return results, 0, nil
	}
	db := r.db.WithContext(ctx)
	base := filteredPosts(db, authorIDs, page.PostFilter).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || int64(page.Offset) >= total {
		return results, total, nil
	}

	err := base.
		Select("posts.*, COUNT(likes.id) AS like_count").
		Joins("LEFT JOIN likes ON likes.post_id = posts.id").
		Group("posts.id").
		Order(feedOrder(page)).
		Limit(page.Limit).
		Offset(page.Offset).
		Scan(&results).Error
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	tags, err := tagsByPost(db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range results {
		results[i].Tags = tags[results[i].ID]
		if results[i].Tags == nil {
			results[i].Tags = []string{}
		}
	}
	return results, total, nil
}

func filteredPosts(db *gorm.DB, authorIDs []string, filter models.PostFilter) *gorm.DB {
	q := db.Model(&models.Post{}).Where("posts.author_id = ANY(?::text[])", textArray(authorIDs))
	if filter.Tag != "" {
		q = q.Where("posts.id IN (?)", db.Model(&models.PostTag{}).Select("post_id").Where("name = ?", filter.Tag))
	}
	if filter.Search != "" {
		q = q.Where("LOWER(posts.text) LIKE LOWER(?)", containsPattern(filter.Search))
	}
	return q
}

// feedOrder builds the ORDER BY for a page. Only known columns reach the SQL.
func feedOrder(page models.PostPage) string {
	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	if page.OrderBy == "like_count" {
		return "like_count " + dir + ", posts.created_at DESC, posts.id DESC"
	}
	return "posts.created_at " + dir + ", posts.id DESC"
}

func insertTags(tx *gorm.DB, postID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	rows := make([]models.PostTag, len(names))
	for i, name := range names {
		rows[i] = models.PostTag{PostID: postID, Name: name}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// loadTags fills Tags on every post.
func loadTags(db *gorm.DB, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	byPost, err := tagsByPost(db, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].Tags = byPost[posts[i].ID]
		if posts[i].Tags == nil {
			posts[i].Tags = []string{}
		}
	}
	return nil
}

// tagsByPost reads the tags of postIDs, one query per chunk of ids.
func tagsByPost(db *gorm.DB, postIDs []string) (map[string][]string, error) {
	byPost := make(map[string][]string, len(postIDs))
	for _, chunk := range chunkIDs(postIDs, maxInListSize) {
		var tags []models.PostTag
		if err := db.Where("post_id IN ?", chunk).Order("id").Find(&tags).Error; err != nil {
			return nil, err
		}
		for _, t := range tags {
			byPost[t.PostID] = append(byPost[t.PostID], t.Name)
		}
	}
	return byPost, nil
}
