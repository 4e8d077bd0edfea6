package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mot25/event-emitter-sync/internal/bus"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/driver"
	"github.com/mot25/event-emitter-sync/internal/verifier"
)

type localCounter struct {
	mu     sync.Mutex
	counts map[event.Kind]int64
}

func (c *localCounter) Stats(kind event.Kind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

func (c *localCounter) incr(kind event.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind]++
}

type remoteCounter map[event.Kind]int64

func (r remoteCounter) Stats(_ context.Context, kind event.Kind) (int64, error) { return r[kind], nil }

func newTestServer(t *testing.T) (*httptest.Server, *localCounter) {
	t.Helper()
	b := bus.New()
	local := &localCounter{counts: make(map[event.Kind]int64)}
	b.Subscribe(event.KindA, local.incr)

	v := verifier.New(event.All(), local, remoteCounter{event.KindA: 1}, nil, nil)
	srv := httptest.NewServer(NewRouter(NewHandlers(b, v, event.All()), nil))
	t.Cleanup(srv.Close)
	return srv, local
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestEmitThroughHTTP(t *testing.T) {
	srv, local := newTestServer(t)

	resp, err := http.Post(srv.URL+"/events/A", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var body struct {
		Kind     string `json:"kind"`
		Notified int    `json:"notified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != "A" || body.Notified != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if local.Stats(event.KindA) != 1 {
		t.Fatalf("emit did not reach the subscriber")
	}

	resp2, err := http.Post(srv.URL+"/events/Z", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", resp2.StatusCode)
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, local := newTestServer(t)
	local.incr(event.KindA)

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rep verifier.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Kinds) != 2 || !rep.Converged() {
		t.Fatalf("unexpected report %+v", rep)
	}

	resp2, err := http.Get(srv.URL + "/stats/A")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var row verifier.KindReport
	if err := json.NewDecoder(resp2.Body).Decode(&row); err != nil {
		t.Fatal(err)
	}
	if row.Kind != event.KindA || row.Local != 1 || row.Remote != 1 {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// sharedCounter stands in for both stats views so convergence only depends
// on emissions being counted.
type sharedCounter struct {
	mu     sync.Mutex
	counts map[event.Kind]int64
}

func (c *sharedCounter) incr(kind event.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind]++
}

func (c *sharedCounter) Stats(kind event.Kind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

type remoteView struct{ c *sharedCounter }

func (r remoteView) Stats(_ context.Context, kind event.Kind) (int64, error) { return r.c.Stats(kind), nil }

func TestHTTPEmitDuringDriverRunStillConverges(t *testing.T) {
	b := bus.New()
	counts := &sharedCounter{counts: make(map[event.Kind]int64)}
	for _, k := range event.All() {
		b.Subscribe(k, counts.incr)
	}
	v := verifier.New(event.All(), counts, remoteView{counts}, b, nil)
	srv := httptest.NewServer(NewRouter(NewHandlers(b, v, event.All()), nil))
	defer srv.Close()

	d := driver.New(b, 10, time.Millisecond, 1)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), event.All()) }()

	resp, err := http.Post(srv.URL+"/events/A", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	rep, err := v.Check(context.Background())
	if err != nil {
		t.Fatalf("expected convergence, got %v", err)
	}
	row, _ := rep.Kind(event.KindA)
	if row.Emitted != 11 || d.Fired(event.KindA) != 10 {
		t.Fatalf("expected 10 driver + 1 http emissions of A, got row %+v", row)
	}
}
