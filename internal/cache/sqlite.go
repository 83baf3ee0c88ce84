package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"inquest/internal/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key       TEXT PRIMARY KEY,
    value     BLOB NOT NULL,
    stored_at TEXT NOT NULL
);
`

// SQLite is a persistent cache backed by a local SQLite file. Misses caused
// by storage errors degrade to cache misses rather than failing the caller.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens or creates the cache database at path, creating the
// parent directory if needed.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLite{db: db, log: logging.New("cache")}, nil
}

func (s *SQLite) Get(key string, ttl time.Duration) (json.RawMessage, bool) {
	var value []byte
	var storedAt string
	err := s.db.QueryRow(
		"SELECT value, stored_at FROM cache_entries WHERE key = ?", key,
	).Scan(&value, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}

	if ttl > 0 {
		ts, err := time.Parse(time.RFC3339, storedAt)
		if err != nil || time.Since(ts) > ttl {
			if _, derr := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); derr != nil {
				s.log.Warn("stale entry cleanup failed", "key", key, "error", derr)
			}
			return nil, false
		}
	}
	return value, true
}

func (s *SQLite) Set(key string, value json.RawMessage) bool {
	_, err := s.db.Exec(
		`INSERT INTO cache_entries(key, value, stored_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		key, []byte(value), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *SQLite) Close() error { return s.db.Close() }
