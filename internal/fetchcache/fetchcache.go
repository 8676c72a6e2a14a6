// Package fetchcache persists per-source fetch state (etag, content hash) in
// an on-disk SQLite database so unchanged upstream files can be skipped.
package fetchcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	_ "modernc.org/sqlite"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS fetches (
    source TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    etag TEXT,
    sha256 TEXT,
    transform_sig TEXT,
    synced_at TEXT NOT NULL
);`

const (
	upsertStmt = `INSERT INTO fetches(source, url, etag, sha256, transform_sig, synced_at) VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET url=excluded.url, etag=excluded.etag, sha256=excluded.sha256, transform_sig=excluded.transform_sig, synced_at=excluded.synced_at`
	selectStmt = `SELECT url, etag, sha256, transform_sig, synced_at FROM fetches WHERE source = ?`
)

// Entry is the cached fetch state for one manifest source. TransformSig
// fingerprints the rewrite configuration the cached content was produced
// with; a changed manifest must not reuse a stale etag.
type Entry struct {
	Source       string
	URL          string
	ETag         string
	SHA256       string
	TransformSig string
	SyncedAt     time.Time
}

// Cache wraps the SQLite handle. A nil *Cache is valid and caches nothing.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the cache location under the user cache dir.
func DefaultPath() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "docsite", "fetch.db")
	}
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docsite-fetch.db")
	}
	return filepath.Join(home, ".docsite", "fetch.db")
}

// Open initializes the cache database, creating the schema if needed.
func Open(path string) (*Cache, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("cache path cannot be empty")
	}
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure fetches table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached entry for source, or ok=false when absent. Errors
// are returned as absent entries so a broken cache never fails a sync.
func (c *Cache) Get(ctx context.Context, source string) (Entry, bool) {
	if c == nil || c.db == nil {
		return Entry{}, false
	}
	var (
		entry    = Entry{Source: source}
		syncedAt string
	)
	row := c.db.QueryRowContext(ctx, selectStmt, source)
	if err := row.Scan(&entry.URL, &entry.ETag, &entry.SHA256, &entry.TransformSig, &syncedAt); err != nil {
		return Entry{}, false
	}
	if ts, err := time.Parse(time.RFC3339, syncedAt); err == nil {
		entry.SyncedAt = ts
	}
	return entry, true
}

// Put records fetch state for source.
func (c *Cache) Put(ctx context.Context, entry Entry) error {
	if c == nil || c.db == nil {
		return nil
	}
	syncedAt := entry.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx, upsertStmt,
		entry.Source, entry.URL, entry.ETag, entry.SHA256, entry.TransformSig, syncedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record fetch state: %w", err)
	}
	return nil
}
