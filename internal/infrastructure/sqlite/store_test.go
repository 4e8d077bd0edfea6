package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if v, err := s.Get(ctx, event.KindA); err != nil || v != 0 {
		t.Fatalf("expected 0 for unset kind, got %d (%v)", v, err)
	}
	if err := s.Set(ctx, event.KindA, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, event.KindA, 6); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get(ctx, event.KindA); v != 6 {
		t.Fatalf("expected 6, got %d", v)
	}
	if v, _ := s.Get(ctx, event.KindB); v != 0 {
		t.Fatalf("kind B touched: %d", v)
	}
	if err := s.Set(ctx, event.KindB, -1); !errors.Is(err, counter.ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "stats.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, event.KindB, 11); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, _ := s.Get(ctx, event.KindB); v != 11 {
		t.Fatalf("expected 11 after reopen, got %d", v)
	}
}
