package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_stats (
	kind TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
	updated_at_utc_ns INTEGER NOT NULL
);
`

// Store is a counter.Store in a single SQLite file.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, kind event.Kind) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM event_stats WHERE kind = ?`, string(kind)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select event_stats: %w", err)
	}
	return n, nil
}

func (s *Store) Set(ctx context.Context, kind event.Kind, value int64) error {
	if value < 0 {
		return counter.ErrNegativeCount
	}
	const q = `
INSERT INTO event_stats (kind, count, updated_at_utc_ns)
VALUES (?, ?, strftime('%s','now') * 1000000000)
ON CONFLICT (kind) DO UPDATE SET count = excluded.count, updated_at_utc_ns = excluded.updated_at_utc_ns
`
	if _, err := s.db.ExecContext(ctx, q, string(kind), value); err != nil {
		return fmt.Errorf("upsert event_stats: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
