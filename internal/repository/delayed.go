package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/delta"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

var (
	// ErrTransient marks a write that did not reach the store and may be retried.
	ErrTransient = errors.New("repository: transient write failure")
	// ErrInvalidDelta is returned for non-positive amounts.
	ErrInvalidDelta = errors.New("repository: delta must be positive")
)

// ApplyError carries the delta a failed apply was for.
type ApplyError struct {
	Kind event.Kind
	Seq  uint64
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s#%d: %v", e.Kind, e.Seq, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Delayed wraps a counter.Store behind a slow, unreliable apply operation.
// It takes every delta at face value: no dedupe and no reordering, so callers
// own ordering and exactly-once delivery.
type Delayed struct {
	store    counter.Store
	minDelay time.Duration
	maxDelay time.Duration
	faults   Faults
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Delayed)

// WithDelay bounds the simulated latency of each apply.
func WithDelay(min, max time.Duration) Option {
	return func(d *Delayed) {
		if max < min {
			max = min
		}
		d.minDelay, d.maxDelay = min, max
	}
}

func WithFaults(f Faults) Option {
	return func(d *Delayed) {
		if f != nil {
			d.faults = f
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Delayed) { d.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Delayed) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSeed makes the delay sequence reproducible.
func WithSeed(seed int64) Option {
	return func(d *Delayed) { d.rng = rand.New(rand.NewSource(seed)) }
}

func New(store counter.Store, opts ...Option) *Delayed {
	d := &Delayed{
		store:    store,
		minDelay: 10 * time.Millisecond,
		maxDelay: 100 * time.Millisecond,
		faults:   NoFaults{},
		logger:   slog.Default(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ApplyDelta adds d.Amount to the remote count of d.Kind after a random delay
// and returns the new count. A failed call leaves the store untouched.
func (r *Delayed) ApplyDelta(ctx context.Context, d delta.Delta) (int64, error) {
	if d.Amount <= 0 {
		return 0, &ApplyError{Kind: d.Kind, Seq: d.Seq, Err: ErrInvalidDelta}
	}

	if err := r.sleep(ctx, r.delay()); err != nil {
		return 0, err
	}

	if r.faults.ShouldFail(d) {
		return 0, &ApplyError{Kind: d.Kind, Seq: d.Seq, Err: ErrTransient}
	}

	cur, err := r.store.Get(ctx, d.Kind)
	if err != nil {
		return 0, &ApplyError{Kind: d.Kind, Seq: d.Seq, Err: fmt.Errorf("%w: get: %v", ErrTransient, err)}
	}
	next := cur + d.Amount
	if err := r.store.Set(ctx, d.Kind, next); err != nil {
		return 0, &ApplyError{Kind: d.Kind, Seq: d.Seq, Err: fmt.Errorf("%w: set: %v", ErrTransient, err)}
	}

	if r.observer != nil {
		applied := delta.Applied{Delta: d, Count: next, AppliedAt: r.now().UTC()}
		if err := r.observer.DeltaApplied(ctx, applied); err != nil {
			r.logger.Warn("delta observer failed", "kind", d.Kind, "seq", d.Seq, "error", err)
		}
	}

	return next, nil
}

// Stats returns the remote count for kind.
func (r *Delayed) Stats(ctx context.Context, kind event.Kind) (int64, error) {
	v, err := r.store.Get(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("get remote stats for %s: %w", kind, err)
	}
	return v, nil
}

func (r *Delayed) delay() time.Duration {
	span := r.maxDelay - r.minDelay
	if span <= 0 {
		return r.minDelay
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.minDelay + time.Duration(r.rng.Int63n(int64(span)+1))
}

func (r *Delayed) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
