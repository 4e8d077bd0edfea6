package delta

import (
	"time"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// Delta is a pending write of Amount against the remote count of Kind.
// Seq orders deltas of the same kind in the order their events were observed.
type Delta struct {
	ID         string     `json:"id"`
	Kind       event.Kind `json:"kind"`
	Seq        uint64     `json:"seq"`
	Amount     int64      `json:"amount"`
	ObservedAt time.Time  `json:"observed_at"`
	Attempts   int        `json:"attempts"`
}

// Applied records a delta accepted by the remote store together with the
// count it produced.
type Applied struct {
	Delta     Delta     `json:"delta"`
	Count     int64     `json:"count"`
	AppliedAt time.Time `json:"applied_at"`
}
