package counter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// ErrNegativeCount is returned when a caller tries to store a count below zero.
var ErrNegativeCount = errors.New("counter: negative count")

// Store is the raw counter primitive: a named non-negative integer per kind.
// Get returns 0 for a kind that was never set. Implementations do not
// serialize read-modify-write sequences; callers own that.
type Store interface {
	Get(ctx context.Context, kind event.Kind) (int64, error)
	Set(ctx context.Context, kind event.Kind, value int64) error
}

// Memory is an in-process Store. The mutex only keeps the map safe for
// concurrent readers and for different kinds written from different goroutines.
type Memory struct {
	mu     sync.RWMutex
	counts map[event.Kind]int64
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[event.Kind]int64)}
}

func (m *Memory) Get(_ context.Context, kind event.Kind) (int64, error) {
	return m.Value(kind), nil
}

func (m *Memory) Set(_ context.Context, kind event.Kind, value int64) error {
	if value < 0 {
		return ErrNegativeCount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[kind] = value
	return nil
}

// Value returns the count for kind without a context.
func (m *Memory) Value(kind event.Kind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[kind]
}

// Incr adds one to kind and returns the new count.
func (m *Memory) Incr(kind event.Kind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[kind]++
	return m.counts[kind]
}

// Snapshot copies every count set so far.
func (m *Memory) Snapshot() map[event.Kind]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[event.Kind]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Zero sets every kind in s to 0.
func Zero(ctx context.Context, s Store, kinds []event.Kind) error {
	for _, k := range kinds {
		if err := s.Set(ctx, k, 0); err != nil {
			return fmt.Errorf("zero %s: %w", k, err)
		}
	}
	return nil
}
