package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

type countingEmitter struct {
	mu     sync.Mutex
	counts map[event.Kind]int
}

func (c *countingEmitter) Emit(kind event.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind]++
	return 1
}

func TestRunFiresEveryKindUpToBudget(t *testing.T) {
	em := &countingEmitter{counts: make(map[event.Kind]int)}
	d := New(em, 30, time.Millisecond, 1)

	if err := d.Run(context.Background(), event.All()); err != nil {
		t.Fatal(err)
	}
	for _, k := range event.All() {
		if em.counts[k] != 30 {
			t.Fatalf("kind %s emitted %d times, want 30", k, em.counts[k])
		}
		if d.Fired(k) != 30 {
			t.Fatalf("kind %s fired counter %d, want 30", k, d.Fired(k))
		}
	}
	if d.Fired("Z") != 0 {
		t.Fatalf("unknown kind must report 0")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	em := &countingEmitter{counts: make(map[event.Kind]int)}
	d := New(em, 1000, 50*time.Millisecond, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx, []event.Kind{event.KindA}); err == nil {
		t.Fatalf("expected context error")
	}
	if got := d.Fired(event.KindA); got >= 1000 {
		t.Fatalf("driver ignored cancellation, fired %d", got)
	}
	if int64(em.counts[event.KindA]) != d.Fired(event.KindA) {
		t.Fatalf("fired counter %d differs from emissions %d", d.Fired(event.KindA), em.counts[event.KindA])
	}
}
