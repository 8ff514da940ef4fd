package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// FeedCache stores serialized feed pages. Get reports a miss with ok=false.
type FeedCache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// FeedInvalidator drops every cached feed page of one viewer.
type FeedInvalidator interface {
	InvalidateViewer(ctx context.Context, viewerID string) error
}

// CachedFeed wraps a FeedComposer with a TTL cache keyed by viewer and the
// normalized query. Cache failures fall through to the wrapped composer.
// A viewer's pages are dropped when their follows change; new, edited and
// deleted posts show up once the TTL runs out.
type CachedFeed struct {
	next    FeedComposer
	cache   FeedCache
	ttl     time.Duration
	enabled bool
	opts    Options
}

func NewCachedFeed(next FeedComposer, cache FeedCache, ttl time.Duration, enabled bool, opts Options) *CachedFeed {
	return &CachedFeed{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		enabled: enabled && cache != nil && ttl > 0,
		opts:    opts.withDefaults(),
	}
}

func (c *CachedFeed) ComposeFeed(ctx context.Context, viewerID string, q FeedQuery) (*FeedPage, error) {
	if !c.enabled || viewerID == "" {
		return c.next.ComposeFeed(ctx, viewerID, q)
	}

	key := feedCacheKey(viewerID, normalizeQuery(q, c.opts))
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("feed cache read failed", "key", key, "error", err)
	} else if ok {
		var page FeedPage
		if err := json.Unmarshal(raw, &page); err == nil {
			return &page, nil
		}
		slog.Warn("discarding undecodable feed cache entry", "key", key)
	}

	page, err := c.next.ComposeFeed(ctx, viewerID, q)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(page); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			slog.Warn("feed cache write failed", "key", key, "error", err)
		}
	}
	return page, nil
}

func (c *CachedFeed) InvalidateViewer(ctx context.Context, viewerID string) error {
	if !c.enabled || viewerID == "" {
		return nil
	}
	return c.cache.DeletePrefix(ctx, feedCachePrefix(viewerID))
}

func feedCachePrefix(viewerID string) string {
	return "feed:" + viewerID + ":"
}

func feedCacheKey(viewerID string, q FeedQuery) string {
	v := url.Values{}
	v.Set("ordering", q.Ordering.String())
	v.Set("tag", q.Tag)
	v.Set("search", q.Search)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	return feedCachePrefix(viewerID) + v.Encode()
}
