package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/mot25/event-emitter-sync/internal/config"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/postgres"
)

func main() {
	reset := flag.Bool("reset", false, "zero every counter and clear the applied delta log")
	limit := flag.Int("limit", 5, "applied deltas to show per kind")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewClient(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	stats := postgres.NewCounterRepository(pool)
	deltas := postgres.NewDeltaLogRepository(pool)

	if *reset {
		if err := postgres.Reset(ctx, postgres.NewTxManager(pool), stats, deltas); err != nil {
			fmt.Printf("Reset failed: %v\n", err)
		} else {
			fmt.Println("Counters reset")
		}
	}

	counts, err := stats.All(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	kinds := make([]event.Kind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Println("--- Event stats ---")
	for _, kind := range kinds {
		fmt.Printf("Kind: %s | Count: %d\n", kind, counts[kind])
	}

	fmt.Println("\n--- Applied deltas ---")
	for _, kind := range kinds {
		rows, err := deltas.ListByKind(ctx, kind, *limit)
		if err != nil {
			fmt.Printf("%s: %v\n", kind, err)
			continue
		}
		for _, a := range rows {
			fmt.Printf("Kind: %s | Seq: %d | Count: %d | Attempts: %d | Applied: %s\n",
				kind, a.Delta.Seq, a.Count, a.Delta.Attempts, a.AppliedAt.Format("15:04:05.000"))
		}
	}
}
