package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mot25/event-emitter-sync/internal/domain/delta"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/metrics"
)

// MessageWriter is satisfied by *kafka.Producer.
type MessageWriter interface {
	SendMessage(ctx context.Context, key, value []byte) error
}

// Publisher announces every applied delta on the audit feed.
type Publisher struct {
	writer   MessageWriter
	producer string
	timeout  time.Duration
}

func NewPublisher(w MessageWriter, producer string) *Publisher {
	return &Publisher{writer: w, producer: producer, timeout: 5 * time.Second}
}

func (p *Publisher) DeltaApplied(ctx context.Context, a delta.Applied) error {
	payload, err := json.Marshal(event.DeltaAppliedPayload{
		DeltaID: a.Delta.ID,
		Seq:     a.Delta.Seq,
		Amount:  a.Delta.Amount,
		Count:   a.Count,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := event.Message{
		ID:         uuid.NewString(),
		Type:       event.TypeDeltaApplied,
		Kind:       a.Delta.Kind,
		Producer:   p.producer,
		OccurredAt: a.AppliedAt,
		Payload:    payload,
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.SendMessage(sendCtx, []byte(a.Delta.Kind), value); err != nil {
		metrics.AuditMessages.WithLabelValues("publish_error").Inc()
		return fmt.Errorf("publish %s#%d: %w", a.Delta.Kind, a.Delta.Seq, err)
	}
	metrics.AuditMessages.WithLabelValues("published").Inc()
	return nil
}
