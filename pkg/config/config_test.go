package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("MAX_POST_LENGTH", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 280, cfg.MaxPostLength)
	assert.Equal(t, 20, cfg.FeedPageSize)
	assert.Equal(t, 100, cfg.FeedMaxPageSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("FEED_PAGE_SIZE", "5")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 5, cfg.FeedPageSize)
	assert.Equal(t, "memory", cfg.StoreDriver)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FEED_PAGE_SIZE", "many")
	t.Setenv("CACHE_ENABLED", "perhaps")
	t.Setenv("NOTIFY_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 20, cfg.FeedPageSize)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
}
