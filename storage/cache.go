package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// Cache keeps the raw listings extracted for a source URL in a local
// sqlite file so repeated digests within the TTL skip the collaborator.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	logger *utils.Logger
	now    func() time.Time
}

// NewCache opens (or creates) the cache database at dbPath.
func NewCache(dbPath string, ttl time.Duration, logger *utils.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open %q: %w", dbPath, err)
	}
	// a single writer avoids SQLITE_BUSY from concurrent source workers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS extractions (
			source_url TEXT NOT NULL PRIMARY KEY,
			data       TEXT NOT NULL,
			scraped_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create table: %w", err)
	}

	return &Cache{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Get returns the cached raw listings for sourceURL when they are younger
// than the TTL.
func (c *Cache) Get(ctx context.Context, sourceURL string) ([]*models.RawListing, bool) {
	key := utils.CanonicalURL(sourceURL)

	var data string
	var scrapedAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT data, scraped_at FROM extractions WHERE source_url = ?`, key,
	).Scan(&data, &scrapedAt)
	if err != nil {
		return nil, false
	}

	if c.now().Sub(scrapedAt) > c.ttl {
		return nil, false
	}

	var listings []*models.RawListing
	if err := json.Unmarshal([]byte(data), &listings); err != nil {
		c.logger.Warn("[cache] Failed to unmarshal entry for %s: %v", sourceURL, err)
		return nil, false
	}
	return listings, true
}

// Set stores listings for sourceURL, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, sourceURL string, listings []*models.RawListing) {
	data, err := json.Marshal(listings)
	if err != nil {
		c.logger.Warn("[cache] Failed to marshal entry for %s: %v", sourceURL, err)
		return
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO extractions (source_url, data, scraped_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(source_url)
		 DO UPDATE SET data = excluded.data, scraped_at = excluded.scraped_at`,
		utils.CanonicalURL(sourceURL), string(data), c.now().UTC(),
	)
	if err != nil {
		c.logger.Warn("[cache] Failed to store entry for %s: %v", sourceURL, err)
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}
