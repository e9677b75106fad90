package tools

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/altay/deepresearch/internal/metrics"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Cache is a persistent TTL'd cache for tool results, keyed by tool name and
// query. Repeated research over the same ground skips the provider round trip.
type Cache struct {
	db      *sql.DB
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	cron    *cron.Cron
}

// CacheOptions configures the cache
type CacheOptions struct {
	Path    string
	TTL     time.Duration
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// OpenCache opens (or creates) the cache database at path
func OpenCache(opts CacheOptions) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS tool_cache (
	key        TEXT PRIMARY KEY,
	tool       TEXT NOT NULL,
	query      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_cache_expiry ON tool_cache(expires_at);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	c := &Cache{
		db:      db,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}

	c.logger.Info().Str("path", opts.Path).Dur("ttl", opts.TTL).Msg("Tool cache opened")
	return c, nil
}

func cacheKey(tool, query string) string {
	sum := sha256.Sum256([]byte(tool + ":" + query))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached output for a tool/query pair, if present and fresh
func (c *Cache) Get(tool, query string) (Output, bool) {
	var payload string
	var expiresAt int64

	row := c.db.QueryRow(
		`SELECT payload, expires_at FROM tool_cache WHERE key = ?`,
		cacheKey(tool, query),
	)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn().Err(err).Msg("Cache read failed")
		}
		c.metrics.CacheMissesTotal.Inc()
		return Output{}, false
	}

	if time.Now().Unix() > expiresAt {
		c.metrics.CacheMissesTotal.Inc()
		return Output{}, false
	}

	var out Output
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		c.logger.Warn().Err(err).Msg("Cache payload corrupt, treating as miss")
		c.metrics.CacheMissesTotal.Inc()
		return Output{}, false
	}

	c.metrics.CacheHitsTotal.Inc()
	return out, true
}

// Put stores an output with the default TTL
func (c *Cache) Put(tool, query string, out Output) error {
	return c.put(tool, query, out, c.ttl)
}

// Seed stores curated long-lived facts, consulted before live lookups. Used
// to pre-populate baseline knowledge that changes infrequently.
func (c *Cache) Seed(tool, query string, out Output, ttl time.Duration) error {
	return c.put(tool, query, out, ttl)
}

func (c *Cache) put(tool, query string, out Output, ttl time.Duration) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	now := time.Now()
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO tool_cache (key, tool, query, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cacheKey(tool, query), tool, query, string(payload),
		now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Sweep deletes expired entries and returns how many were removed
func (c *Cache) Sweep() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM tool_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.logger.Debug().Int64("removed", n).Msg("Swept expired cache entries")
	}
	return n, nil
}

// StartSweeper schedules a periodic expiry sweep
func (c *Cache) StartSweeper(spec string) error {
	c.cron = cron.New()
	_, err := c.cron.AddFunc(spec, func() {
		if _, err := c.Sweep(); err != nil {
			c.logger.Warn().Err(err).Msg("Scheduled cache sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}
	c.cron.Start()
	return nil
}

// Close stops the sweeper and closes the database
func (c *Cache) Close() error {
	if c.cron != nil {
		c.cron.Stop()
	}
	return c.db.Close()
}
