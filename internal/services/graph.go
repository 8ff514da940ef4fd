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

// Notifier is told about new follow edges. Implementations may be slow or
// fail; GraphService never lets either affect the follow itself.
type Notifier interface {
	NotifyFollowed(ctx context.Context, followerID, followedID string) error
}

// GraphService owns the follow graph.
type GraphService struct {
	follows  repositories.FollowRepository
	users    repositories.UserRepository
	notifier Notifier
	feeds    FeedInvalidator
	opts     Options
}

func NewGraphService(follows repositories.FollowRepository, users repositories.UserRepository, notifier Notifier, opts Options) *GraphService {
	return &GraphService{
		follows:  follows,
		users:    users,
		notifier: notifier,
		opts:     opts.withDefaults(),
	}
}

// InvalidateFeedsWith makes follow and unfollow drop the actor's cached feed.
func (s *GraphService) InvalidateFeedsWith(feeds FeedInvalidator) {
	s.feeds = feeds
}

func (s *GraphService) invalidateFeed(ctx context.Context, viewerID string) {
	if s.feeds == nil {
		return
	}
	if err := s.feeds.InvalidateViewer(ctx, viewerID); err != nil {
		slog.Warn("feed cache invalidation failed", "viewer_id", viewerID, "error", err)
	}
}

// Follow creates the edge actor -> target. Checks run in a fixed order:
// self follow, unknown target, existing edge.
func (s *GraphService) Follow(ctx context.Context, actorID, targetID string) (*models.Follow, error) {
	ctx, span := tracer.Start(ctx, "GraphService.Follow")
	defer span.End()

	if actorID == targetID {
		return nil, apperror.ErrSelfFollow
	}
	exists, err := s.users.UserExists(ctx, targetID)
	if err != nil {
		return nil, apperror.Transient("follow", err)
	}
	if !exists {
		return nil, apperror.ErrTargetNotFound
	}

	follow := &models.Follow{
		ID:         uuid.Must(uuid.NewV7()).String(),
		FollowerID: actorID,
		FollowedID: targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.follows.CreateFollow(ctx, follow); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyExists):
			return nil, apperror.ErrAlreadyFollowing
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, apperror.ErrTargetNotFound
		case errors.Is(err, repositories.ErrSelfReference):
			return nil, apperror.ErrSelfFollow
		}
		return nil, apperror.Transient("follow", err)
	}

	s.invalidateFeed(ctx, actorID)
	s.notifyFollowed(ctx, actorID, targetID)
	return follow, nil
}

// notifyFollowed dispatches on its own goroutine with a deadline detached
// from the request, so a cancelled request does not cancel delivery.
func (s *GraphService) notifyFollowed(ctx context.Context, followerID, followedID string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	go func() {
		defer cancel()
		if err := s.notifier.NotifyFollowed(notifyCtx, followerID, followedID); err != nil {
			slog.Warn("follow notification failed", "follower_id", followerID, "followed_id", followedID, "error", err)
		}
	}()
}

// Unfollow removes exactly the edge actor -> target.
func (s *GraphService) Unfollow(ctx context.Context, actorID, targetID string) error {
	ctx, span := tracer.Start(ctx, "GraphService.Unfollow")
	defer span.End()

	if err := s.follows.DeleteFollow(ctx, actorID, targetID); err != nil {
		if errors.Is(err, repositories.ErrFollowNotFound) {
			return apperror.ErrNotFollowing
		}
		return apperror.Transient("unfollow", err)
	}
	s.invalidateFeed(ctx, actorID)
	return nil
}

// FollowersOf lists who follows userID, most recent follower first.
func (s *GraphService) FollowersOf(ctx context.Context, userID string) ([]models.UserSummary, error) {
	ctx, span := tracer.Start(ctx, "GraphService.FollowersOf")
	defer span.End()

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, apperror.Transient("list followers", err)
	}
	return s.summaries(ctx, ids)
}

// FollowingOf lists who userID follows, most recent first.
func (s *GraphService) FollowingOf(ctx context.Context, userID string) ([]models.UserSummary, error) {
	ctx, span := tracer.Start(ctx, "GraphService.FollowingOf")
	defer span.End()

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, apperror.Transient("list following", err)
	}
	return s.summaries(ctx, ids)
}

// UserSummary returns one user with follow counts.
func (s *GraphService) UserSummary(ctx context.Context, userID string) (*models.UserSummary, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	out, err := s.summaries(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperror.ErrTargetNotFound
	}
	return &out[0], nil
}

func (s *GraphService) IsFollowing(ctx context.Context, a, b string) (bool, error) {
	ok, err := s.follows.IsFollowing(ctx, a, b)
	if err != nil {
		return false, apperror.Transient("is following", err)
	}
	return ok, nil
}

// FollowedAuthorIDs is the set of authors whose posts userID may see.
func (s *GraphService) FollowedAuthorIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.follows.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, apperror.Transient("list following", err)
	}
	return ids, nil
}

func (s *GraphService) requireUser(ctx context.Context, userID string) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return apperror.Transient("load user", err)
	}
	if !exists {
		return apperror.ErrTargetNotFound
	}
	return nil
}

// summaries annotates ids with follow counts, keeping the order of ids.
// Users deleted since the id listing are skipped.
func (s *GraphService) summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	out := make([]models.UserSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Transient("load users", err)
	}
	followers, err := s.follows.CountFollowers(ctx, ids)
	if err != nil {
		return nil, apperror.Transient("count followers", err)
	}
	following, err := s.follows.CountFollowing(ctx, ids)
	if err != nil {
		return nil, apperror.Transient("count following", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, models.UserSummary{
			ID:             u.ID,
			Username:       u.Username,
			Email:          u.Email,
			FollowerCount:  followers[id],
			FollowingCount: following[id],
		})
	}
	return out, nil
}
