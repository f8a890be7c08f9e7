package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"innkeep/pkg/cache"
	"innkeep/pkg/logger"
)

// CachedResponse is the replayable body of a previously answered request.
type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays cached responses for repeated Idempotency-Key headers.
// Responses live in the shared cache store, so with the Redis backend the
// guarantee holds across instances. Only 2xx responses are cached; a failed
// attempt may be retried with the same key.
func Idempotency(store cache.Store, ttl time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := "idem:" + r.Method + ":" + r.URL.Path + ":" + key

			if raw, ok, err := store.Get(r.Context(), cacheKey); err == nil && ok {
				var cached CachedResponse
				uerr := json.Unmarshal(raw, &cached)
				if uerr == nil {
					replay(w, &cached)
					return
				}
				log.Warn("Discarding unreadable idempotency entry", "key", cacheKey, "error", uerr)
			}

			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     200,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}

			raw, err := json.Marshal(CachedResponse{
				StatusCode: capture.statusCode,
				Headers:    w.Header().Clone(),
				Body:       capture.body.Bytes(),
			})
			if err != nil {
				log.Warn("Failed to encode idempotency entry", "key", cacheKey, "error", err)
				return
			}
			if err := store.Set(r.Context(), cacheKey, raw, ttl); err != nil {
				log.Warn("Failed to store idempotency entry", "key", cacheKey, "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("X-Idempotent-Replay", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
