package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// CounterStore keeps one string key per kind holding its count.
type CounterStore struct {
	client *redis.Client
	prefix string
}

func NewCounterStore(client *redis.Client, prefix string) *CounterStore {
	return &CounterStore{client: client, prefix: prefix}
}

func (s *CounterStore) key(kind event.Kind) string {
	return s.prefix + string(kind)
}

func (s *CounterStore) Get(ctx context.Context, kind event.Kind) (int64, error) {
	n, err := s.client.Get(ctx, s.key(kind)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", s.key(kind), err)
	}
	return n, nil
}

func (s *CounterStore) Set(ctx context.Context, kind event.Kind, value int64) error {
	if value < 0 {
		return counter.ErrNegativeCount
	}
	if err := s.client.Set(ctx, s.key(kind), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(kind), err)
	}
	return nil
}
