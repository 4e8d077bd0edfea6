package event

import (
	"encoding/json"
	"time"
)

// TypeDeltaApplied marks a message announcing that the remote store accepted a delta.
const TypeDeltaApplied = "DeltaApplied"

// Message is the envelope published to Kafka.
// Payload is kept as raw JSON produced by the originating component.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Kind       Kind            `json:"kind"`
	Producer   string          `json:"producer"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// DeltaAppliedPayload is the payload of a TypeDeltaApplied message.
type DeltaAppliedPayload struct {
	DeltaID string `json:"delta_id"`
	Seq     uint64 `json:"seq"`
	Amount  int64  `json:"amount"`
	Count   int64  `json:"count"`
}
