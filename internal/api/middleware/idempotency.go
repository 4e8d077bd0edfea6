package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "idempotency:"
	inProgress   = "PROCESSING"
	lockTTL      = 10 * time.Second
	completedTTL = 24 * time.Hour
)

// responseRecorder keeps a copy of the body so it can be replayed.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency makes a POST carrying an Idempotency-Key run at most once per
// key and path. Repeats get the stored response back with
// X-Idempotency-Hit set; a repeat that races the first request gets 409.
// Error responses release the key so the client may retry.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if redisClient == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := keyPrefix + r.URL.Path + ":" + key
			ctx := r.Context()

			val, err := redisClient.Get(ctx, idemKey).Result()
			switch {
			case err == nil && val == inProgress:
				writeConflict(w)
				return
			case err == nil:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(val))
				return
			case !errors.Is(err, redis.Nil):
				// Redis is down; serve without the guarantee.
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := redisClient.SetNX(ctx, idemKey, inProgress, lockTTL).Result()
			if err != nil || !acquired {
				writeConflict(w)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusBadRequest {
				redisClient.Del(ctx, idemKey)
				return
			}
			redisClient.Set(ctx, idemKey, rec.body.String(), completedTTL)
		})
	}
}

func writeConflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	w.Write([]byte(`{"error":"request in progress"}`))
}
