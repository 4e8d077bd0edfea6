package repository

import (
	"math/rand"
	"sync"

	"github.com/mot25/event-emitter-sync/internal/domain/delta"
)

// Faults decides whether an apply attempt fails. It is consulted once per
// call after the simulated delay.
type Faults interface {
	ShouldFail(d delta.Delta) bool
}

// NoFaults never fails.
type NoFaults struct{}

func (NoFaults) ShouldFail(delta.Delta) bool { return false }

// RandomFaults fails a Rate fraction of calls.
type RandomFaults struct {
	Rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomFaults(rate float64, seed int64) *RandomFaults {
	return &RandomFaults{Rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (f *RandomFaults) ShouldFail(delta.Delta) bool {
	if f.Rate <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(1))
	}
	return f.rng.Float64() < f.Rate
}

// FailCalls fails the listed 1-based call numbers and lets every other call through.
type FailCalls struct {
	mu    sync.Mutex
	calls int
	fail  map[int]struct{}
}

func NewFailCalls(calls ...int) *FailCalls {
	f := &FailCalls{fail: make(map[int]struct{}, len(calls))}
	for _, c := range calls {
		f.fail[c] = struct{}{}
	}
	return f
}

func (f *FailCalls) ShouldFail(delta.Delta) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	_, ok := f.fail[f.calls]
	return ok
}

// Calls returns how many times the policy was consulted.
func (f *FailCalls) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
