package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/google/uuid"
)

// LikeService owns the (user, post) like relation.
type LikeService struct {
	likes repositories.LikeRepository
	posts repositories.PostRepository
}

func NewLikeService(likes repositories.LikeRepository, posts repositories.PostRepository) *LikeService {
	return &LikeService{likes: likes, posts: posts}
}

func (s *LikeService) Like(ctx context.Context, actorID, postID string) (*models.Like, error) {
	ctx, span := tracer.Start(ctx, "LikeService.Like")
	defer span.End()

	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	like := &models.Like{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    actorID,
		PostID:    postID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.likes.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, apperror.ErrAlreadyLiked
		}
		return nil, apperror.Transient("like", err)
	}

	// The post may have been deleted after the check above, in which case
	// its like cascade has already run.
	if err := s.requirePost(ctx, postID); errors.Is(err, apperror.ErrPostNotFound) {
		if derr := s.likes.DeleteLike(ctx, actorID, postID); derr != nil && !errors.Is(derr, repositories.ErrLikeNotFound) {
			slog.WarnContext(ctx, "failed to remove like on deleted post", "post_id", postID, "user_id", actorID, "error", derr)
		}
		return nil, err
	}
	return like, nil
}

func (s *LikeService) Unlike(ctx context.Context, actorID, postID string) error {
	ctx, span := tracer.Start(ctx, "LikeService.Unlike")
	defer span.End()

	if err := s.likes.DeleteLike(ctx, actorID, postID); err != nil {
		if errors.Is(err, repositories.ErrLikeNotFound) {
			return apperror.ErrNotLiked
		}
		return apperror.Transient("unlike", err)
	}
	return nil
}

// LikesOf lists the likes on postID, newest first. A deleted post reports
// PostNotFound, so likes left behind by a concurrent delete are never listed.
func (s *LikeService) LikesOf(ctx context.Context, postID string) ([]models.Like, error) {
	ctx, span := tracer.Start(ctx, "LikeService.LikesOf")
	defer span.End()

	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	likes, err := s.likes.GetLikesByPostID(ctx, postID)
	if err != nil {
		return nil, apperror.Transient("list likes", err)
	}
	return likes, nil
}

func (s *LikeService) requirePost(ctx context.Context, postID string) error {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return apperror.ErrPostNotFound
		}
		return apperror.Transient("load post", err)
	}
	return nil
}
