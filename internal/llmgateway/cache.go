package llmgateway

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// SQLiteCache is the content-addressed LLM response cache of spec.md §6:
// `llm_cache/<model>.sqlite` with columns `(key TEXT PRIMARY KEY, message
// TEXT, metadata TEXT)`. Writers are serialized through a single
// *sql.DB connection pool plus an advisory file lock (so a second process
// attaching to the same file doesn't corrupt it); reads are lock-free,
// matching spec.md §5's "last-writer-wins is acceptable for idempotent
// responses" policy.
type SQLiteCache struct {
	db       *sql.DB
	fileLock *flock.Flock
}

// NewSQLiteCache opens (creating if needed) the cache file for modelName
// directly under dir, e.g. "<dir>/gpt-4o-mini.sqlite" (dir is typically
// "<save_dir>/llm_cache").
func NewSQLiteCache(dir, modelName string) (*SQLiteCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("llmgateway: creating cache dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, sanitizeFilename(modelName)+".sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: opening cache db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer pool, per spec.md §5/§9

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		message TEXT,
		metadata TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("llmgateway: creating cache schema: %w", err)
	}

	return &SQLiteCache{
		db:       db,
		fileLock: flock.New(path + ".lock"),
	}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get is lock-free: concurrent readers never block on the advisory lock.
func (c *SQLiteCache) Get(ctx context.Context, key string) (message string, metadata string, ok bool, err error) {
	row := c.db.QueryRowContext(ctx, `SELECT message, metadata FROM cache WHERE key = ?`, key)
	err = row.Scan(&message, &metadata)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return message, metadata, true, nil
}

// Set takes the advisory file lock before writing so concurrent processes
// attached to the same cache file don't interleave writes, per spec.md §5.
func (c *SQLiteCache) Set(ctx context.Context, key, message, metadata string) error {
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := c.fileLock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("llmgateway: acquiring cache file lock: %w", err)
	}
	defer c.fileLock.Unlock()

	_, err = c.db.ExecContext(ctx, `INSERT INTO cache (key, message, metadata) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET message = excluded.message, metadata = excluded.metadata`,
		key, message, metadata)
	return err
}

func sanitizeFilename(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
