package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
)

type mapStats map[event.Kind]int64

func (m mapStats) Stats(kind event.Kind) int64 { return m[kind] }
func (m mapStats) Fired(kind event.Kind) int64 { return m[kind] }

type remoteMap struct {
	counts map[event.Kind]int64
	err    error
}

func (r remoteMap) Stats(_ context.Context, kind event.Kind) (int64, error) {
	return r.counts[kind], r.err
}

func TestCheckPassesWhenConverged(t *testing.T) {
	local := mapStats{event.KindA: 5}
	remote := remoteMap{counts: map[event.Kind]int64{event.KindA: 5}}
	fired := mapStats{event.KindA: 5}
	v := New(event.All(), local, remote, fired, nil)

	rep, err := v.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Converged() {
		t.Fatalf("expected converged report")
	}
	b, ok := rep.Kind(event.KindB)
	if !ok || b.Local != 0 || b.Remote != 0 || b.Emitted != 0 {
		t.Fatalf("unexpected B row %+v", b)
	}
}

func TestCheckReportsLaggingRemote(t *testing.T) {
	local := mapStats{event.KindA: 5, event.KindB: 2}
	remote := remoteMap{counts: map[event.Kind]int64{event.KindA: 3, event.KindB: 2}}
	fired := mapStats{event.KindA: 5, event.KindB: 2}
	v := New(event.All(), local, remote, fired, nil)

	_, err := v.Check(context.Background())
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if len(me.Kinds) != 1 || me.Kinds[0].Kind != event.KindA || me.Kinds[0].Remote != 3 {
		t.Fatalf("unexpected mismatch %+v", me.Kinds)
	}
}

func TestSampleWithoutFiredCountsTrustsLocal(t *testing.T) {
	local := mapStats{event.KindA: 4}
	remote := remoteMap{counts: map[event.Kind]int64{event.KindA: 4}}
	v := New([]event.Kind{event.KindA}, local, remote, nil, nil)

	rep, err := v.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Converged() {
		t.Fatalf("expected converged, got %+v", rep)
	}
}

func TestSamplePropagatesRemoteError(t *testing.T) {
	v := New(event.All(), mapStats{}, remoteMap{err: errors.New("boom")}, nil, nil)
	if _, err := v.Sample(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
