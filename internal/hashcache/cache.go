// Package hashcache memoizes content hashes across runs so the exact
// duplicate tier only rehashes files that changed.
package hashcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"mediakeep/internal/hashcache/migrations"
	"mediakeep/internal/media"
)

// SQLiteCache implements media.HashCache on a local SQLite file. Entries are
// keyed by path and validated against size and mtime, so a touched file
// simply misses and gets rehashed.
type SQLiteCache struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the cache at path and migrates its schema.
// path may be ":memory:" for tests.
func Open(path string) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening hash cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring hash cache: %w", err)
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCache{db: db, path: path}, nil
}

// Close releases the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached hash for path when size and mtime still match
// the stored observation.
func (c *SQLiteCache) Lookup(path string, size int64, mtimeNano int64) (string, bool, error) {
	var sum string
	err := c.db.QueryRow(
		"SELECT sha256 FROM content_hashes WHERE path = ? AND size = ? AND mtime_ns = ?",
		path, size, mtimeNano,
	).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up hash for %s: %w", path, err)
	}
	return sum, true, nil
}

// Store upserts the hash observation for path.
func (c *SQLiteCache) Store(path string, size int64, mtimeNano int64, sum string) error {
	_, err := c.db.Exec(
		`INSERT INTO content_hashes (path, size, mtime_ns, sha256, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   size = excluded.size,
		   mtime_ns = excluded.mtime_ns,
		   sha256 = excluded.sha256,
		   updated_at = excluded.updated_at`,
		path, size, mtimeNano, sum, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing hash for %s: %w", path, err)
	}
	return nil
}

var _ media.HashCache = (*SQLiteCache)(nil)
