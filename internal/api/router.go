package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mot25/event-emitter-sync/internal/api/middleware"
)

// NewRouter wires the HTTP surface. redisClient may be nil, which turns the
// idempotency middleware into a pass-through.
func NewRouter(h *Handlers, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)
	r.Use(ChiMiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/stats", h.GetStats)
	r.Get("/stats/{kind}", h.GetKindStats)

	// Idempotent manual emission
	r.With(middleware.Idempotency(redisClient)).Post("/events/{kind}", h.Emit)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
