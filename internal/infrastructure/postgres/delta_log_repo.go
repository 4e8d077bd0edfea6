package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mot25/event-emitter-sync/internal/domain/delta"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// DeltaLogRepository keeps one row per applied delta. It is wired as a
// repository.Observer.
type DeltaLogRepository struct {
	pool *pgxpool.Pool
}

func NewDeltaLogRepository(pool *pgxpool.Pool) *DeltaLogRepository {
	return &DeltaLogRepository{pool: pool}
}

// DeltaApplied records a; a delta id already present is ignored.
func (r *DeltaLogRepository) DeltaApplied(ctx context.Context, a delta.Applied) error {
	const sql = `
		INSERT INTO applied_deltas (delta_id, kind, seq, amount, count, attempts, observed_at, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (delta_id) DO NOTHING
	`
	d := a.Delta
	_, err := exec(ctx, r.pool).Exec(ctx, sql,
		d.ID, string(d.Kind), int64(d.Seq), d.Amount, a.Count, d.Attempts, d.ObservedAt, a.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert applied delta: %w", err)
	}
	return nil
}

// ListByKind returns the most recent applied deltas of kind, newest first.
func (r *DeltaLogRepository) ListByKind(ctx context.Context, kind event.Kind, limit int) ([]delta.Applied, error) {
	const sql = `
		SELECT delta_id::text, kind, seq, amount, count, attempts, observed_at, applied_at
		FROM applied_deltas
		WHERE kind = $1
		ORDER BY seq DESC
		LIMIT $2
	`
	rows, err := exec(ctx, r.pool).Query(ctx, sql, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query applied deltas: %w", err)
	}
	defer rows.Close()

	var out []delta.Applied
	for rows.Next() {
		var (
			a        delta.Applied
			k        string
			seq      int64
			observed time.Time
		)
		if err := rows.Scan(&a.Delta.ID, &k, &seq, &a.Delta.Amount, &a.Count, &a.Delta.Attempts, &observed, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan applied delta: %w", err)
		}
		a.Delta.Kind = event.Kind(k)
		a.Delta.Seq = uint64(seq)
		a.Delta.ObservedAt = observed
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *DeltaLogRepository) Reset(ctx context.Context) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, `DELETE FROM applied_deltas`); err != nil {
		return fmt.Errorf("clear applied deltas: %w", err)
	}
	return nil
}
