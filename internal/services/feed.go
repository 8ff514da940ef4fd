package services

import (
	"context"
	"sort"
	"strings"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"go.opentelemetry.io/otel/attribute"
)

// Ordering selects the sort key of a feed.
type Ordering struct {
	Field string // created_at or like_count
	Desc  bool
}

var DefaultOrdering = Ordering{Field: "created_at", Desc: true}

func (o Ordering) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// ParseOrdering accepts created_at, like_count and their "-" prefixed
// descending forms. An empty value gives DefaultOrdering.
func ParseOrdering(raw string) (Ordering, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOrdering, nil
	}
	o := Ordering{Field: strings.TrimPrefix(raw, "-"), Desc: strings.HasPrefix(raw, "-")}
	switch o.Field {
	case "created_at", "like_count":
		return o, nil
	}
	return Ordering{}, apperror.Validation("ordering must be one of created_at, -created_at, like_count, -like_count.")
}

// FeedQuery holds the caller-supplied feed criteria. Zero values mean no
// filter, default ordering and the default page.
type FeedQuery struct {
	Tag      string
	Search   string
	Ordering Ordering
	Limit    int
	Offset   int
}

// FeedPage is one page of a feed; Count is the total before pagination.
type FeedPage struct {
	Count   int                    `json:"count"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	Results []models.AnnotatedPost `json:"results"`
}

// FeedComposer builds a viewer's feed. An empty viewerID is an anonymous
// caller.
type FeedComposer interface {
	ComposeFeed(ctx context.Context, viewerID string, q FeedQuery) (*FeedPage, error)
}

// AuthorResolver returns the authors a viewer follows.
type AuthorResolver interface {
	FollowedAuthorIDs(ctx context.Context, userID string) ([]string, error)
}

type FeedService struct {
	authors AuthorResolver
	posts   repositories.PostRepository
	likes   repositories.LikeRepository
	opts    Options
}

func NewFeedService(authors AuthorResolver, posts repositories.PostRepository, likes repositories.LikeRepository, opts Options) *FeedService {
	return &FeedService{authors: authors, posts: posts, likes: likes, opts: opts.withDefaults()}
}

// normalizeQuery clamps the page window and fills in the default ordering.
func normalizeQuery(q FeedQuery, opts Options) FeedQuery {
	if q.Ordering.Field == "" {
		q.Ordering = DefaultOrdering
	}
	if q.Limit <= 0 {
		q.Limit = opts.FeedPageSize
	}
	if q.Limit > opts.FeedMaxPageSize {
		q.Limit = opts.FeedMaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Tag = strings.TrimSpace(q.Tag)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// ComposeFeed resolves the followed authors, then filters, annotates like
// counts, orders and pages their posts. Stores implementing
// repositories.FeedReader do this themselves; otherwise it happens here.
// Anonymous viewers and viewers who follow nobody get an empty page.
func (s *FeedService) ComposeFeed(ctx context.Context, viewerID string, q FeedQuery) (*FeedPage, error) {
	ctx, span := tracer.Start(ctx, "FeedService.ComposeFeed")
	defer span.End()

	q = normalizeQuery(q, s.opts)
	page := &FeedPage{Limit: q.Limit, Offset: q.Offset, Results: []models.AnnotatedPost{}}
	if viewerID == "" {
		return page, nil
	}

	authorIDs, err := s.authors.FollowedAuthorIDs(ctx, viewerID)
	if err != nil {
		return nil, apperror.Transient("compose feed", err)
	}
	span.SetAttributes(attribute.Int("feed.authors", len(authorIDs)))
	if len(authorIDs) == 0 {
		return page, nil
	}

	filter := models.PostFilter{Tag: q.Tag, Search: q.Search}
	if reader, ok := s.posts.(repositories.FeedReader); ok {
		results, total, err := reader.ReadFeed(ctx, authorIDs, models.PostPage{
			PostFilter: filter,
			OrderBy:    q.Ordering.Field,
			Desc:       q.Ordering.Desc,
			Limit:      q.Limit,
			Offset:     q.Offset,
		})
		if err != nil {
			return nil, apperror.Transient("compose feed", err)
		}
		page.Count = int(total)
		if results != nil {
			page.Results = results
		}
		span.SetAttributes(attribute.Int("feed.count", page.Count))
		return page, nil
	}

	posts, err := s.posts.ListPostsByAuthors(ctx, authorIDs, filter)
	if err != nil {
		return nil, apperror.Transient("compose feed", err)
	}
	if len(posts) == 0 {
		return page, nil
	}

	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	counts, err := s.likes.CountLikesByPostIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Transient("compose feed", err)
	}

	annotated := make([]models.AnnotatedPost, len(posts))
	for i := range posts {
		annotated[i] = models.AnnotatedPost{Post: posts[i], LikeCount: counts[posts[i].ID]}
	}
	sortFeed(annotated, q.Ordering)

	page.Count = len(annotated)
	if q.Offset < len(annotated) {
		end := min(q.Offset+q.Limit, len(annotated))
		page.Results = annotated[q.Offset:end]
	}
	span.SetAttributes(attribute.Int("feed.count", page.Count))
	return page, nil
}

// sortFeed orders by the requested key, then created_at descending, then id
// descending, so equal keys always come out in the same order.
func sortFeed(posts []models.AnnotatedPost, o Ordering) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch o.Field {
		case "like_count":
			if a.LikeCount != b.LikeCount {
				if o.Desc {
					return a.LikeCount > b.LikeCount
				}
				return a.LikeCount < b.LikeCount
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				if o.Desc {
					return a.CreatedAt.After(b.CreatedAt)
				}
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
