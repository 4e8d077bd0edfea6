package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mot25/event-emitter-sync/internal/bus"
	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/delta"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/metrics"
)

// Applier is the slow remote side of the handler.
type Applier interface {
	ApplyDelta(ctx context.Context, d delta.Delta) (int64, error)
}

// State is the drain state of one kind.
type State int

const (
	Idle State = iota
	Draining
)

func (s State) String() string {
	if s == Draining {
		return "draining"
	}
	return "idle"
}

// lane owns the pending queue of one kind. The head of queue stays in place
// while its apply is in flight, so len(queue) is always local minus remote.
type lane struct {
	kind event.Kind

	mu       sync.Mutex
	queue    []delta.Delta
	seq      uint64
	draining bool
	closed   bool
}

// Handler keeps local stats current on every event and drains a per-kind
// FIFO of unit deltas into the Applier, one apply per kind at a time,
// retrying failures until they succeed.
type Handler struct {
	applier   Applier
	local     *counter.Memory
	lanes     map[event.Kind]*lane
	kinds     []event.Kind
	backoff   Backoff
	warnAfter int
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()
	once   sync.Once
}

type Option func(*Handler)

func WithBackoff(base, max time.Duration) Option {
	return func(h *Handler) { h.backoff = Backoff{Base: base, Max: max} }
}

// WithWarnAfter sets how many consecutive failures of one kind are logged at
// debug level before they are reported as warnings.
func WithWarnAfter(n int) Option {
	return func(h *Handler) { h.warnAfter = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func withIDs(fn func() string) Option {
	return func(h *Handler) { h.newID = fn }
}

// New builds a handler and subscribes it to every kind on b.
func New(b *bus.Bus, applier Applier, kinds []event.Kind, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		applier:   applier,
		local:     counter.NewMemory(),
		lanes:     make(map[event.Kind]*lane, len(kinds)),
		backoff:   Backoff{Base: 10 * time.Millisecond, Max: time.Second},
		warnAfter: 3,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, k := range kinds {
		if _, ok := h.lanes[k]; ok {
			continue
		}
		h.lanes[k] = &lane{kind: k}
		h.kinds = append(h.kinds, k)
		h.unsubs = append(h.unsubs, b.Subscribe(k, h.observe))
	}
	return h
}

// observe counts the event locally and queues its unit delta. Counting and
// queueing happen under the lane lock so the deficit never drifts.
func (h *Handler) observe(kind event.Kind) {
	l, ok := h.lanes[kind]
	if !ok {
		return
	}

	l.mu.Lock()
	h.local.Incr(kind)
	l.seq++
	l.queue = append(l.queue, delta.Delta{
		ID:         h.newID(),
		Kind:       kind,
		Seq:        l.seq,
		Amount:     1,
		ObservedAt: h.now().UTC(),
	})
	depth := len(l.queue)
	start := !l.draining && !l.closed
	if start {
		l.draining = true
		h.wg.Add(1)
	}
	l.mu.Unlock()

	metrics.EventsObserved.WithLabelValues(string(kind)).Inc()
	metrics.PendingDeltas.WithLabelValues(string(kind)).Set(float64(depth))

	if start {
		go h.drain(l)
	}
}

func (h *Handler) drain(l *lane) {
	defer h.wg.Done()

	attempt := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.closed {
			l.draining = false
			l.mu.Unlock()
			return
		}
		head := l.queue[0]
		l.mu.Unlock()

		started := time.Now()
		count, err := h.applier.ApplyDelta(h.ctx, head)
		if err != nil {
			metrics.ApplyDuration.WithLabelValues(string(l.kind), "failure").Observe(time.Since(started).Seconds())
			if h.ctx.Err() != nil {
				h.stopLane(l)
				return
			}
			attempt++
			metrics.ApplyFailures.WithLabelValues(string(l.kind)).Inc()

			l.mu.Lock()
			l.queue[0].Attempts = attempt
			l.mu.Unlock()

			wait := h.backoff.Delay(attempt)
			if attempt >= h.warnAfter {
				h.logger.Warn("remote apply keeps failing; retrying",
					"kind", l.kind, "seq", head.Seq, "attempt", attempt, "backoff", wait, "error", err)
			} else {
				h.logger.Debug("remote apply failed; retrying",
					"kind", l.kind, "seq", head.Seq, "attempt", attempt, "backoff", wait, "error", err)
			}
			if !h.sleep(wait) {
				h.stopLane(l)
				return
			}
			continue
		}

		attempt = 0
		metrics.ApplyDuration.WithLabelValues(string(l.kind), "success").Observe(time.Since(started).Seconds())
		metrics.DeltasApplied.WithLabelValues(string(l.kind)).Inc()

		l.mu.Lock()
		l.queue[0] = delta.Delta{}
		l.queue = l.queue[1:]
		depth := len(l.queue)
		l.mu.Unlock()

		metrics.PendingDeltas.WithLabelValues(string(l.kind)).Set(float64(depth))
		h.logger.Debug("delta applied", "kind", l.kind, "seq", head.Seq, "remote", count, "pending", depth)
	}
}

func (h *Handler) stopLane(l *lane) {
	l.mu.Lock()
	l.draining = false
	l.mu.Unlock()
}

func (h *Handler) sleep(d time.Duration) bool {
	if d <= 0 {
		return h.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Kinds returns the kinds the handler subscribed to, in subscription order.
func (h *Handler) Kinds() []event.Kind {
	out := make([]event.Kind, len(h.kinds))
	copy(out, h.kinds)
	return out
}

// Stats returns how many events of kind the handler observed.
func (h *Handler) Stats(kind event.Kind) int64 {
	return h.local.Value(kind)
}

func (h *Handler) Snapshot() map[event.Kind]int64 {
	return h.local.Snapshot()
}

// Pending returns how many observed deltas of kind are not yet applied remotely.
func (h *Handler) Pending(kind event.Kind) int {
	l, ok := h.lanes[kind]
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Outstanding sums Pending over every kind.
func (h *Handler) Outstanding() int {
	n := 0
	for _, k := range h.kinds {
		n += h.Pending(k)
	}
	return n
}

func (h *Handler) LaneState(kind event.Kind) State {
	l, ok := h.lanes[kind]
	if !ok {
		return Idle
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.draining {
		return Draining
	}
	return Idle
}

// WaitDrained blocks until every queue is empty and every lane is idle.
func (h *Handler) WaitDrained(ctx context.Context) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		if h.drained() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (h *Handler) drained() bool {
	for _, k := range h.kinds {
		l := h.lanes[k]
		l.mu.Lock()
		busy := l.draining || len(l.queue) > 0
		l.mu.Unlock()
		if busy {
			return false
		}
	}
	return true
}

// Close unsubscribes from the bus and stops every drain. Deltas still queued
// stay counted in Pending.
func (h *Handler) Close() {
	h.once.Do(func() {
		for _, unsub := range h.unsubs {
			unsub()
		}
		for _, l := range h.lanes {
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
		}
		h.cancel()
		h.wg.Wait()
	})
}
