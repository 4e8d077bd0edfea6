package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

// LocalStats is the handler's view.
type LocalStats interface {
	Stats(kind event.Kind) int64
}

// RemoteStats is the repository's view.
type RemoteStats interface {
	Stats(ctx context.Context, kind event.Kind) (int64, error)
}

// FiredCounts reports how many emissions actually happened, from every
// source. *bus.Bus satisfies it.
type FiredCounts interface {
	Fired(kind event.Kind) int64
}

// KindReport is one row of a sample.
type KindReport struct {
	Kind    event.Kind `json:"kind"`
	Emitted int64      `json:"emitted"`
	Local   int64      `json:"local"`
	Remote  int64      `json:"remote"`
}

func (r KindReport) Converged() bool {
	return r.Local == r.Emitted && r.Remote == r.Emitted
}

type Report struct {
	TakenAt time.Time    `json:"taken_at"`
	Kinds   []KindReport `json:"kinds"`
}

func (r Report) Converged() bool {
	for _, k := range r.Kinds {
		if !k.Converged() {
			return false
		}
	}
	return true
}

// Kind returns the row for kind.
func (r Report) Kind(kind event.Kind) (KindReport, bool) {
	for _, k := range r.Kinds {
		if k.Kind == kind {
			return k, true
		}
	}
	return KindReport{}, false
}

// Verifier samples both stats views read-only and compares them with the
// fired counts. Without fired counts the local view is taken as the truth.
type Verifier struct {
	kinds  []event.Kind
	local  LocalStats
	remote RemoteStats
	fired  FiredCounts
	logger *slog.Logger
}

func New(kinds []event.Kind, local LocalStats, remote RemoteStats, fired FiredCounts, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{kinds: kinds, local: local, remote: remote, fired: fired, logger: logger}
}

func (v *Verifier) Sample(ctx context.Context) (Report, error) {
	rep := Report{TakenAt: time.Now().UTC(), Kinds: make([]KindReport, 0, len(v.kinds))}
	for _, k := range v.kinds {
		remote, err := v.remote.Stats(ctx, k)
		if err != nil {
			return Report{}, fmt.Errorf("sample %s: %w", k, err)
		}
		row := KindReport{Kind: k, Local: v.local.Stats(k), Remote: remote}
		row.Emitted = row.Local
		if v.fired != nil {
			row.Emitted = v.fired.Fired(k)
		}
		rep.Kinds = append(rep.Kinds, row)
	}
	return rep, nil
}

// Run logs a sample every interval until ctx is done. Mismatches while the
// handler is catching up are expected and logged at info level.
func (v *Verifier) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep, err := v.Sample(ctx)
			if err != nil {
				if ctx.Err() == nil {
					v.logger.Warn("stats sample failed", "error", err)
				}
				continue
			}
			v.log(rep)
		}
	}
}

func (v *Verifier) log(rep Report) {
	args := []any{"converged", rep.Converged()}
	for _, k := range rep.Kinds {
		args = append(args, slog.Group(string(k.Kind),
			"emitted", k.Emitted, "local", k.Local, "remote", k.Remote))
	}
	v.logger.Info("stats", args...)
}

// MismatchError lists the kinds that did not converge.
type MismatchError struct {
	Kinds []KindReport
}

func (e *MismatchError) Error() string {
	parts := make([]string, 0, len(e.Kinds))
	for _, k := range e.Kinds {
		parts = append(parts, fmt.Sprintf("%s emitted=%d local=%d remote=%d", k.Kind, k.Emitted, k.Local, k.Remote))
	}
	return "stats mismatch: " + strings.Join(parts, "; ")
}

// Check takes a final sample and fails with *MismatchError unless every kind converged.
func (v *Verifier) Check(ctx context.Context) (Report, error) {
	rep, err := v.Sample(ctx)
	if err != nil {
		return rep, err
	}
	v.log(rep)
	var bad []KindReport
	for _, k := range rep.Kinds {
		if !k.Converged() {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		return rep, &MismatchError{Kinds: bad}
	}
	return rep, nil
}
