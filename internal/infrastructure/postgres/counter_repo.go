package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// CounterRepository stores remote counts in the event_stats table.
type CounterRepository struct {
	pool *pgxpool.Pool
}

func NewCounterRepository(pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{pool: pool}
}

func (r *CounterRepository) Get(ctx context.Context, kind event.Kind) (int64, error) {
	const sql = `SELECT count FROM event_stats WHERE kind = $1`

	var n int64
	err := exec(ctx, r.pool).QueryRow(ctx, sql, string(kind)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select event_stats: %w", err)
	}
	return n, nil
}

func (r *CounterRepository) Set(ctx context.Context, kind event.Kind, value int64) error {
	if value < 0 {
		return counter.ErrNegativeCount
	}
	const sql = `
		INSERT INTO event_stats (kind, count, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (kind) DO UPDATE SET count = EXCLUDED.count, updated_at = NOW()
	`
	if _, err := exec(ctx, r.pool).Exec(ctx, sql, string(kind), value); err != nil {
		return fmt.Errorf("upsert event_stats: %w", err)
	}
	return nil
}

// All returns every stored count.
func (r *CounterRepository) All(ctx context.Context) (map[event.Kind]int64, error) {
	const sql = `SELECT kind, count FROM event_stats ORDER BY kind`

	rows, err := exec(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query event_stats: %w", err)
	}
	defer rows.Close()

	out := make(map[event.Kind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event_stats: %w", err)
		}
		out[event.Kind(kind)] = n
	}
	return out, rows.Err()
}

func (r *CounterRepository) Reset(ctx context.Context) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, `UPDATE event_stats SET count = 0, updated_at = NOW()`); err != nil {
		return fmt.Errorf("reset event_stats: %w", err)
	}
	return nil
}
