//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mot25/event-emitter-sync/internal/domain/delta"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

func startPostgres(t *testing.T) Config {
	t.Helper()
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker/container runtime unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "event_stats",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(time.Minute),
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker/container runtime unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, _ := ctr.Host(ctx)
	port, _ := ctr.MappedPort(ctx, "5432")
	return Config{Host: host, Port: port.Port(), User: "user", Password: "password", DBName: "event_stats"}
}

func TestCounterRepositoryAndDeltaLog(t *testing.T) {
	ctx := context.Background()
	pool, err := NewClient(ctx, startPostgres(t))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatal(err)
	}

	stats := NewCounterRepository(pool)
	logRepo := NewDeltaLogRepository(pool)

	if v, err := stats.Get(ctx, event.KindA); err != nil || v != 0 {
		t.Fatalf("expected 0 for unset kind, got %d (%v)", v, err)
	}
	if err := stats.Set(ctx, event.KindA, 3); err != nil {
		t.Fatal(err)
	}
	if err := stats.Set(ctx, event.KindA, 4); err != nil {
		t.Fatal(err)
	}
	if v, _ := stats.Get(ctx, event.KindA); v != 4 {
		t.Fatalf("expected 4, got %d", v)
	}

	applied := delta.Applied{
		Delta:     delta.Delta{ID: uuid.NewString(), Kind: event.KindA, Seq: 4, Amount: 1, ObservedAt: time.Now().UTC()},
		Count:     4,
		AppliedAt: time.Now().UTC(),
	}
	if err := logRepo.DeltaApplied(ctx, applied); err != nil {
		t.Fatal(err)
	}
	if err := logRepo.DeltaApplied(ctx, applied); err != nil {
		t.Fatalf("duplicate delta must be ignored: %v", err)
	}
	rows, err := logRepo.ListByKind(ctx, event.KindA, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Delta.Seq != 4 || rows[0].Count != 4 {
		t.Fatalf("unexpected delta log %+v", rows)
	}

	if err := Reset(ctx, NewTxManager(pool), stats, logRepo); err != nil {
		t.Fatal(err)
	}
	all, err := stats.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if all[event.KindA] != 0 {
		t.Fatalf("expected reset count 0, got %d", all[event.KindA])
	}
	if rows, _ := logRepo.ListByKind(ctx, event.KindA, 10); len(rows) != 0 {
		t.Fatalf("expected empty delta log after reset, got %d rows", len(rows))
	}
}
