package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxTagLength = 100

var validate = validator.New()

// PostService handles post mutations and single-post reads.
type PostService struct {
	posts repositories.PostRepository
	likes repositories.LikeRepository
	opts  Options
}

func NewPostService(posts repositories.PostRepository, likes repositories.LikeRepository, opts Options) *PostService {
	return &PostService{posts: posts, likes: likes, opts: opts.withDefaults()}
}

func (s *PostService) CreatePost(ctx context.Context, authorID string, in models.PostInput) (*models.AnnotatedPost, error) {
	ctx, span := tracer.Start(ctx, "PostService.CreatePost")
	defer span.End()

	text, err := s.cleanText(in.Text)
	if err != nil {
		return nil, err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post := &models.Post{
		ID:        uuid.Must(uuid.NewV7()).String(),
		AuthorID:  authorID,
		Text:      text,
		Image:     in.Image,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, apperror.Transient("create post", err)
	}
	return &models.AnnotatedPost{Post: *post}, nil
}

// UpdatePost applies the non-nil fields of upd. A tag list replaces the
// whole set.
func (s *PostService) UpdatePost(ctx context.Context, actorID, postID string, upd models.PostUpdate) (*models.AnnotatedPost, error) {
	ctx, span := tracer.Start(ctx, "PostService.UpdatePost")
	defer span.End()

	post, err := s.ownedPost(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	if upd.Text != nil {
		text, err := s.cleanText(*upd.Text)
		if err != nil {
			return nil, err
		}
		post.Text = text
	}
	if upd.Image != nil {
		post.Image = upd.Image
		if *upd.Image == "" {
			post.Image = nil
		}
	}
	if upd.Tags != nil {
		tags, err := cleanTags(*upd.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = tags
	}
	post.UpdatedAt = time.Now().UTC()

	if err := s.posts.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, apperror.ErrPostNotFound
		}
		return nil, apperror.Transient("update post", err)
	}
	return s.annotate(ctx, post)
}

// DeletePost removes the post, then its likes. Readers that race the second
// step are protected by the post lookup in LikeService.LikesOf.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID string) error {
	ctx, span := tracer.Start(ctx, "PostService.DeletePost")
	defer span.End()

	if _, err := s.ownedPost(ctx, actorID, postID); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return apperror.ErrPostNotFound
		}
		return apperror.Transient("delete post", err)
	}
	if err := s.likes.DeleteLikesByPostID(ctx, postID); err != nil {
		slog.Error("failed to remove likes of deleted post", "post_id", postID, "error", err)
	}
	return nil
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*models.AnnotatedPost, error) {
	ctx, span := tracer.Start(ctx, "PostService.GetPost")
	defer span.End()

	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, apperror.ErrPostNotFound
		}
		return nil, apperror.Transient("load post", err)
	}
	return s.annotate(ctx, post)
}

func (s *PostService) ownedPost(ctx context.Context, actorID, postID string) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, apperror.ErrPostNotFound
		}
		return nil, apperror.Transient("load post", err)
	}
	if post.AuthorID != actorID {
		return nil, apperror.ErrForbidden
	}
	return post, nil
}

func (s *PostService) annotate(ctx context.Context, post *models.Post) (*models.AnnotatedPost, error) {
	counts, err := s.likes.CountLikesByPostIDs(ctx, []string{post.ID})
	if err != nil {
		return nil, apperror.Transient("count likes", err)
	}
	return &models.AnnotatedPost{Post: *post, LikeCount: counts[post.ID]}, nil
}

// cleanText trims surrounding whitespace and enforces 1..MaxPostLength characters.
func (s *PostService) cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.Validation("Post text must not be empty.")
	}
	if err := validate.Var(text, fmt.Sprintf("max=%d", s.opts.MaxPostLength)); err != nil {
		return "", apperror.Validation(fmt.Sprintf("Post text must be at most %d characters.", s.opts.MaxPostLength))
	}
	return text, nil
}

// cleanTags trims tags, drops empty ones and removes duplicates, keeping the
// first occurrence order. Tags compare case-sensitively.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if err := validate.Var(tag, fmt.Sprintf("max=%d", maxTagLength)); err != nil {
			return nil, apperror.Validation(fmt.Sprintf("Tags must be at most %d characters.", maxTagLength))
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}
