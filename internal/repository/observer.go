package repository

import (
	"context"

	"github.com/mot25/event-emitter-sync/internal/domain/delta"
)

// Observer is told about every delta the store accepted.
type Observer interface {
	DeltaApplied(ctx context.Context, a delta.Applied) error
}

// Observers fans a notification out to each observer in order and returns
// the first error after all of them ran.
type Observers []Observer

func (o Observers) DeltaApplied(ctx context.Context, a delta.Applied) error {
	var first error
	for _, obs := range o {
		if err := obs.DeltaApplied(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
