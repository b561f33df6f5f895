// Package store provides a SQLite-backed cache of parsed export lists, keyed
// by file path and content hash. It only accelerates startup priming: a miss
// or a broken cache always degrades to parsing, never to failure.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/okiba/tstap/internal/treesitter"
)

const schema = `
CREATE TABLE IF NOT EXISTS export_cache (
	path     TEXT NOT NULL,
	hash     TEXT NOT NULL,
	exports  TEXT NOT NULL,
	created  INTEGER NOT NULL DEFAULT (strftime('%s','now')),
	PRIMARY KEY (path, hash)
);
`

// Cache is a SQLite-backed export cache.
type Cache struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open cache db: %w", err)
	}

	// SQLite pragmas for performance.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database. Safe on a nil receiver.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// HashText returns the cache key hash for file contents.
func HashText(text string) string {
	return strconv.FormatUint(xxh3.HashString(text), 16)
}

// Get returns the cached exports for (path, hash), or false on miss.
// Safe on a nil receiver (always a miss).
func (c *Cache) Get(path, hash string) ([]treesitter.Export, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var raw string
	err := c.db.QueryRow(
		"SELECT exports FROM export_cache WHERE path = ? AND hash = ?",
		path, hash,
	).Scan(&raw)
	if err != nil {
		return nil, false
	}

	var exports []treesitter.Export
	if err := json.Unmarshal([]byte(raw), &exports); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("store: corrupt cache entry, dropping")
		_, _ = c.db.Exec("DELETE FROM export_cache WHERE path = ? AND hash = ?", path, hash)
		return nil, false
	}
	return exports, true
}

// Put stores the exports for (path, hash), replacing any older hashes for the
// same path. Failures are logged, not returned; the cache is best effort.
func (c *Cache) Put(path, hash string, exports []treesitter.Export) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(exports)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("store: marshal exports")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM export_cache WHERE path = ? AND hash != ?", path, hash); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("store: evict stale hashes")
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO export_cache (path, hash, exports) VALUES (?, ?, ?)",
		path, hash, string(raw),
	)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("store: insert cache entry")
	}
}
