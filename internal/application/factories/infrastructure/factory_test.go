package infrastructure

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mot25/event-emitter-sync/internal/config"
	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/sqlite"
)

func TestRemoteStoreMemory(t *testing.T) {
	cfg := &config.Config{Repository: config.Repository{Backend: config.BackendMemory}}
	f := NewFactory(cfg, nil)
	defer f.Close()

	s, err := f.RemoteStore(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*counter.Memory); !ok {
		t.Fatalf("expected *counter.Memory, got %T", s)
	}
	if f.KafkaProducer() != nil {
		t.Fatalf("kafka producer must be nil when disabled")
	}
}

func TestRemoteStoreSQLiteIsCached(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Repository: config.Repository{Backend: config.BackendSQLite},
		SQLite:     config.SQLite{Path: filepath.Join(t.TempDir(), "stats.db")},
	}
	f := NewFactory(cfg, nil)
	defer f.Close()

	s1, err := f.RemoteStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s1.(*sqlite.Store); !ok {
		t.Fatalf("expected *sqlite.Store, got %T", s1)
	}
	if err := s1.Set(ctx, event.KindA, 2); err != nil {
		t.Fatal(err)
	}
	s2, err := f.RemoteStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s2.Get(ctx, event.KindA); v != 2 {
		t.Fatalf("expected the same store, got %d", v)
	}
}

func TestRemoteStoreUnknownBackend(t *testing.T) {
	f := NewFactory(&config.Config{Repository: config.Repository{Backend: "tape"}}, nil)
	if _, err := f.RemoteStore(context.Background()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestResetRemoteZeroesLeftoverCounts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")
	cfg := &config.Config{
		Repository: config.Repository{Backend: config.BackendSQLite},
		SQLite:     config.SQLite{Path: path},
	}

	prev := NewFactory(cfg, nil)
	s, err := prev.RemoteStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, event.KindA, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, event.KindB, 7); err != nil {
		t.Fatal(err)
	}
	prev.Close()

	f := NewFactory(cfg, nil)
	defer f.Close()
	if err := f.ResetRemote(ctx, event.All()); err != nil {
		t.Fatal(err)
	}
	s, err = f.RemoteStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range event.All() {
		if v, _ := s.Get(ctx, k); v != 0 {
			t.Fatalf("kind %s kept %d from the previous run", k, v)
		}
	}
}

func TestResetRemoteMemoryKeepsStore(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(&config.Config{Repository: config.Repository{Backend: config.BackendMemory}}, nil)
	s1, _ := f.RemoteStore(ctx)
	_ = s1.Set(ctx, event.KindA, 3)
	if err := f.ResetRemote(ctx, event.All()); err != nil {
		t.Fatal(err)
	}
	s2, _ := f.RemoteStore(ctx)
	if s1 != s2 {
		t.Fatalf("memory backend must be built once per factory")
	}
	if v, _ := s2.Get(ctx, event.KindA); v != 0 {
		t.Fatalf("expected 0 after reset, got %d", v)
	}
}
