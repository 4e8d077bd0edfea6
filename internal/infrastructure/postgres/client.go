package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.DBName)
}

func NewClient(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS event_stats (
		kind TEXT PRIMARY KEY,
		count BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS applied_deltas (
		delta_id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		seq BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		count BIGINT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		observed_at TIMESTAMPTZ NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS applied_deltas_kind_seq ON applied_deltas (kind, seq);
`

// EnsureSchema creates the tables used by the counter store and the delta log.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
