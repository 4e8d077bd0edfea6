package driver

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// Emitter is what the driver fires into.
type Emitter interface {
	Emit(kind event.Kind) int
}

// Driver fires every kind up to a fixed budget at random, overlapping
// intervals. Each firing is scheduled on its own timer, so firings of one
// kind may run concurrently.
type Driver struct {
	emitter     Emitter
	maxEvents   int
	maxInterval time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.RWMutex
	fired map[event.Kind]*atomic.Int64
}

func New(emitter Emitter, maxEvents int, maxInterval time.Duration, seed int64) *Driver {
	return &Driver{
		emitter:     emitter,
		maxEvents:   maxEvents,
		maxInterval: maxInterval,
		rng:         rand.New(rand.NewSource(seed)),
		fired:       make(map[event.Kind]*atomic.Int64),
	}
}

// Run fires each kind maxEvents times and returns once every firing
// happened or ctx is done.
func (d *Driver) Run(ctx context.Context, kinds []event.Kind) error {
	var wg sync.WaitGroup
	for _, k := range kinds {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.trigger(ctx, k)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// trigger runs each emission on its own goroutine so a slow subscriber
// never delays the next timer.
func (d *Driver) trigger(ctx context.Context, kind event.Kind) {
	c := d.counter(kind)
	var wg sync.WaitGroup
	defer wg.Wait()

	for i := 0; i < d.maxEvents; i++ {
		t := time.NewTimer(d.interval())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
			d.emitter.Emit(kind)
		}()
	}
}

func (d *Driver) interval() time.Duration {
	if d.maxInterval <= 0 {
		return 0
	}
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return time.Duration(d.rng.Int63n(int64(d.maxInterval)))
}

func (d *Driver) counter(kind event.Kind) *atomic.Int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.fired[kind]
	if !ok {
		c = &atomic.Int64{}
		d.fired[kind] = c
	}
	return c
}

// Fired returns how many times kind was emitted so far.
func (d *Driver) Fired(kind event.Kind) int64 {
	d.mu.RLock()
	c, ok := d.fired[kind]
	d.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.Load()
}
