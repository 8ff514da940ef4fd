package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/cache"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingComposer struct {
	calls int
}

func (c *countingComposer) ComposeFeed(_ context.Context, viewerID string, q FeedQuery) (*FeedPage, error) {
	c.calls++
	return &FeedPage{
		Count:   1,
		Limit:   q.Limit,
		Results: []models.AnnotatedPost{{Post: models.Post{ID: viewerID + "-post"}}},
	}, nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (failingCache) DeletePrefix(context.Context, string) error {
	return errors.New("cache down")
}

func TestCachedFeed_HitsByViewerAndQuery(t *testing.T) {
	next := &countingComposer{}
	feed := NewCachedFeed(next, cache.NewLRUCache(16, time.Minute), time.Minute, true, DefaultOptions())
	ctx := context.Background()

	first, err := feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	second, err := feed.ComposeFeed(ctx, "a", FeedQuery{Limit: 20, Ordering: DefaultOrdering})
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls, "equivalent queries share one entry")
	assert.Equal(t, first.Results[0].ID, second.Results[0].ID)

	_, err = feed.ComposeFeed(ctx, "b", FeedQuery{})
	require.NoError(t, err)
	_, err = feed.ComposeFeed(ctx, "a", FeedQuery{Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedFeed_DisabledBypasses(t *testing.T) {
	next := &countingComposer{}
	feed := NewCachedFeed(next, cache.NewLRUCache(16, time.Minute), time.Minute, false, DefaultOptions())

	for i := 0; i < 3; i++ {
		_, err := feed.ComposeFeed(context.Background(), "a", FeedQuery{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, next.calls)
}

func TestCachedFeed_AnonymousNotCached(t *testing.T) {
	next := &countingComposer{}
	feed := NewCachedFeed(next, cache.NewLRUCache(16, time.Minute), time.Minute, true, DefaultOptions())

	_, _ = feed.ComposeFeed(context.Background(), "", FeedQuery{})
	_, _ = feed.ComposeFeed(context.Background(), "", FeedQuery{})
	assert.Equal(t, 2, next.calls)
}

func TestCachedFeed_CacheErrorsFallThrough(t *testing.T) {
	next := &countingComposer{}
	feed := NewCachedFeed(next, failingCache{}, time.Minute, true, DefaultOptions())

	page, err := feed.ComposeFeed(context.Background(), "a", FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, "a-post", page.Results[0].ID)
}

func TestCachedFeed_FollowChangesDropViewerPages(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	feed := NewCachedFeed(f.feed, cache.NewLRUCache(16, time.Hour), time.Hour, true, DefaultOptions())
	f.graph.InvalidateFeedsWith(feed)

	_, err := f.postSvc.CreatePost(ctx, "b", models.PostInput{Text: "from b"})
	require.NoError(t, err)
	_, err = f.postSvc.CreatePost(ctx, "c", models.PostInput{Text: "from c"})
	require.NoError(t, err)

	page, err := feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	cFeed, err := feed.ComposeFeed(ctx, "c", FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, cFeed.Results)

	_, err = f.graph.Follow(ctx, "a", "b")
	require.NoError(t, err)
	page, err = feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "from b", page.Results[0].Text)

	require.NoError(t, f.graph.Unfollow(ctx, "a", "b"))
	page, err = feed.ComposeFeed(ctx, "a", FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestCachedFeed_InvalidationFailureKeepsFollow(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.graph.InvalidateFeedsWith(NewCachedFeed(f.feed, failingCache{}, time.Minute, true, DefaultOptions()))

	_, err := f.graph.Follow(context.Background(), "a", "b")
	require.NoError(t, err)
	ok, err := f.graph.IsFollowing(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}
