package repositories

import (
	"github.com/anonto42/minitwitter/backend/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates the relational schema. Posts and tags are skipped when
// they are kept in MongoDB.
func AutoMigrate(db *gorm.DB, withPosts bool) error {
	tables := []any{
		&models.User{},
		&models.Follow{},
		&models.Like{},
		&models.Notification{},
	}
	if withPosts {
		tables = append(tables, &models.Post{}, &models.PostTag{})
	}
	return db.AutoMigrate(tables...)
}
