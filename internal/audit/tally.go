package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

var (
	// ErrDuplicate means the message id or delta id was already counted.
	ErrDuplicate = errors.New("audit: duplicate message")
	// ErrOutOfOrder means a delta arrived with a seq not above the last one seen for its kind.
	ErrOutOfOrder = errors.New("audit: delta out of order")
)

// Tally rebuilds per-kind counts from the audit feed. Messages are deduped
// by id, so redelivery after a failed commit is harmless.
type Tally struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	deltas  map[string]struct{}
	counts  map[event.Kind]int64
	lastSeq map[event.Kind]uint64
}

func NewTally() *Tally {
	return &Tally{
		seen:    make(map[string]struct{}),
		deltas:  make(map[string]struct{}),
		counts:  make(map[event.Kind]int64),
		lastSeq: make(map[event.Kind]uint64),
	}
}

// Record counts one raw audit message. Messages of other types are ignored.
// An out-of-order delta is still counted and reported with ErrOutOfOrder.
func (t *Tally) Record(raw []byte) (event.Message, error) {
	var msg event.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if msg.Type != event.TypeDeltaApplied {
		return msg, nil
	}
	var p event.DeltaAppliedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return msg, fmt.Errorf("unmarshal payload: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[msg.ID]; ok {
		return msg, ErrDuplicate
	}
	t.seen[msg.ID] = struct{}{}
	if p.DeltaID != "" {
		if _, ok := t.deltas[p.DeltaID]; ok {
			return msg, ErrDuplicate
		}
		t.deltas[p.DeltaID] = struct{}{}
	}

	t.counts[msg.Kind] += p.Amount
	last := t.lastSeq[msg.Kind]
	if p.Seq <= last {
		return msg, fmt.Errorf("%w: %s seq %d after %d", ErrOutOfOrder, msg.Kind, p.Seq, last)
	}
	t.lastSeq[msg.Kind] = p.Seq
	return msg, nil
}

func (t *Tally) Count(kind event.Kind) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

func (t *Tally) Snapshot() map[event.Kind]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[event.Kind]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
