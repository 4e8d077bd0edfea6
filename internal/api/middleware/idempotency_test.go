package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdempotencyWithoutRedisPassesThrough(t *testing.T) {
	calls := 0
	h := Idempotency(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/events/A", nil)
		req.Header.Set("Idempotency-Key", "k1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both requests served, got %d", calls)
	}
}
