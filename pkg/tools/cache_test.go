package tools

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := OpenCache(CacheOptions{
		Path:   filepath.Join(t.TempDir(), "cache.db"),
		TTL:    ttl,
		Logger: zerolog.New(os.Stderr).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutGet(t *testing.T) {
	c := openTestCache(t, time.Hour)

	out := Output{
		Content:   "RDS pricing overview",
		Citations: []Citation{{URL: "https://aws.amazon.com/rds/pricing/", Title: "RDS Pricing"}},
	}
	require.NoError(t, c.Put("google_search", "rds pricing", out))

	got, hit := c.Get("google_search", "rds pricing")
	require.True(t, hit)
	assert.Equal(t, out, got)

	// Different tool namespace, same query: miss.
	_, hit = c.Get("browse_webpage", "rds pricing")
	assert.False(t, hit)
}

func TestCacheExpiry(t *testing.T) {
	c := openTestCache(t, 1*time.Millisecond)

	require.NoError(t, c.Put("google_search", "q", Output{Content: "stale"}))
	time.Sleep(1100 * time.Millisecond)

	_, hit := c.Get("google_search", "q")
	assert.False(t, hit)

	removed, err := c.Sweep()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))
}

func TestCacheSeedOutlivesDefaultTTL(t *testing.T) {
	c := openTestCache(t, 1*time.Millisecond)

	require.NoError(t, c.Seed("google_search", "aws regions", Output{Content: "curated facts"}, time.Hour))
	time.Sleep(1100 * time.Millisecond)

	got, hit := c.Get("google_search", "aws regions")
	require.True(t, hit)
	assert.Equal(t, "curated facts", got.Content)
}

func TestCacheOverwrite(t *testing.T) {
	c := openTestCache(t, time.Hour)

	require.NoError(t, c.Put("google_search", "q", Output{Content: "v1"}))
	require.NoError(t, c.Put("google_search", "q", Output{Content: "v2"}))

	got, hit := c.Get("google_search", "q")
	require.True(t, hit)
	assert.Equal(t, "v2", got.Content)
}

func TestCacheSweeperSchedule(t *testing.T) {
	c := openTestCache(t, time.Hour)
	assert.Error(t, c.StartSweeper("not a schedule"))
	require.NoError(t, c.StartSweeper("@hourly"))
}
