// Package streamcache persists resolved stream URLs between runs so
// unchanged items skip the resolution chain on the next harvest.
package streamcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vodharvest/vod-harvest/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
    id          TEXT PRIMARY KEY,
    stream_url  TEXT NOT NULL,
    title       TEXT NOT NULL,
    group_label TEXT NOT NULL,
    image_url   TEXT NOT NULL DEFAULT '',
    season      INTEGER NOT NULL DEFAULT 0,
    episode     INTEGER NOT NULL DEFAULT 0,
    resolved_at TEXT NOT NULL
);`

// Cache is a SQLite-backed store of previously resolved streams.
type Cache struct {
	db *sql.DB
}

// Open connects to (or creates) the cache database at path and
// applies the schema.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("streamcache: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("streamcache: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("streamcache: apply pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("streamcache: apply schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached stream for id when it was resolved within
// ttl. A ttl of zero disables expiry. The second return is false on a
// miss or an expired entry.
func (c *Cache) Get(ctx context.Context, id string, ttl time.Duration) (catalog.ResolvedStream, bool, error) {
	var s catalog.ResolvedStream
	var resolvedAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, stream_url, title, group_label, image_url, season, episode, resolved_at
         FROM streams WHERE id = ?`, id,
	).Scan(&s.ID, &s.StreamURL, &s.Title, &s.GroupLabel, &s.ImageURL, &s.Season, &s.Episode, &resolvedAt)
	if err == sql.ErrNoRows {
		return catalog.ResolvedStream{}, false, nil
	}
	if err != nil {
		return catalog.ResolvedStream{}, false, fmt.Errorf("streamcache: get %s: %w", id, err)
	}
	if ttl > 0 {
		at, err := time.Parse(time.RFC3339Nano, resolvedAt)
		if err != nil || time.Since(at) > ttl {
			return catalog.ResolvedStream{}, false, nil
		}
	}
	return s, true, nil
}

// Put upserts a resolved stream, refreshing its resolution time.
func (c *Cache) Put(ctx context.Context, s catalog.ResolvedStream) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO streams (id, stream_url, title, group_label, image_url, season, episode, resolved_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            stream_url = excluded.stream_url,
            title = excluded.title,
            group_label = excluded.group_label,
            image_url = excluded.image_url,
            season = excluded.season,
            episode = excluded.episode,
            resolved_at = excluded.resolved_at`,
		s.ID, s.StreamURL, s.Title, s.GroupLabel, s.ImageURL, s.Season, s.Episode,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("streamcache: put %s: %w", s.ID, err)
	}
	return nil
}

// Prune deletes entries resolved longer than ttl ago and returns how
// many were removed.
func (c *Cache) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339Nano)
	res, err := c.db.ExecContext(ctx, `DELETE FROM streams WHERE resolved_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("streamcache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
