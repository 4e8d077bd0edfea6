package bus

import (
	"sync"
	"sync/atomic"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// Callback is invoked once per emission of the kind it was registered for.
// It runs on the emitter's goroutine and must not block for long.
type Callback func(kind event.Kind)

type subscription struct {
	id uint64
	fn Callback
}

// Bus is an in-process registration table from kind to ordered subscribers.
// It also counts every emission per kind, whoever the emitter is.
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[event.Kind][]subscription
	emitted map[event.Kind]*atomic.Int64
}

func New() *Bus {
	return &Bus{
		subs:    make(map[event.Kind][]subscription),
		emitted: make(map[event.Kind]*atomic.Int64),
	}
}

// Subscribe registers fn for kind and returns a func that removes it.
func (b *Bus) Subscribe(kind event.Kind, fn Callback) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind event.Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			out := make([]subscription, 0, len(list)-1)
			out = append(out, list[:i]...)
			b.subs[kind] = append(out, list[i+1:]...)
			break
		}
	}
	if len(b.subs[kind]) == 0 {
		delete(b.subs, kind)
	}
}

// Emit notifies every subscriber of kind in subscription order and returns
// how many were notified. The subscriber list is captured before the first
// call, so callbacks may subscribe or unsubscribe without deadlocking.
func (b *Bus) Emit(kind event.Kind) int {
	b.mu.RLock()
	list := b.subs[kind]
	c := b.emitted[kind]
	b.mu.RUnlock()
	if c == nil {
		c = b.counter(kind)
	}
	c.Add(1)
	for _, s := range list {
		s.fn(kind)
	}
	return len(list)
}

func (b *Bus) counter(kind event.Kind) *atomic.Int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.emitted[kind]
	if !ok {
		c = &atomic.Int64{}
		b.emitted[kind] = c
	}
	return c
}

// Fired returns how many times kind was emitted, with or without subscribers.
// The count is bumped before the first subscriber runs.
func (b *Bus) Fired(kind event.Kind) int64 {
	b.mu.RLock()
	c := b.emitted[kind]
	b.mu.RUnlock()
	if c == nil {
		return 0
	}
	return c.Load()
}

// Subscribers returns the number of callbacks registered for kind.
func (b *Bus) Subscribers(kind event.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
