package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	HeaderKey = "Idempotency-Key"
	HeaderHit = "X-Idempotency-Hit"

	inProgress  = "PROCESSING"
	lockTTL     = 10 * time.Second
	responseTTL = 24 * time.Hour
	// storeTimeout bounds the writes made after the handler returned.
	storeTimeout = 2 * time.Second
)

// storedResponse is what a completed request leaves behind in Redis.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// state-changing requests. A key whose request is still running yields 409.
// Server errors are not remembered so the client may retry.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if redisClient == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Only apply to state-changing methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := fmt.Sprintf("idempotency:%s", key)
			ctx := r.Context()

			acquired, err := redisClient.SetNX(ctx, idemKey, inProgress, lockTTL).Result()
			if err != nil {
				// Redis unavailable: serve the request without protection.
				slog.WarnContext(ctx, "idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !acquired {
				replay(w, r, redisClient, idemKey)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// The client may be gone by now; the outcome is recorded regardless.
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
			defer cancel()

			if rec.status >= http.StatusInternalServerError {
				redisClient.Del(storeCtx, idemKey)
				return
			}

			data, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				redisClient.Del(storeCtx, idemKey)
				return
			}
			if err := redisClient.Set(storeCtx, idemKey, data, responseTTL).Err(); err != nil {
				slog.WarnContext(ctx, "failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, redisClient *redis.Client, idemKey string) {
	val, err := redisClient.Get(r.Context(), idemKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Lock expired between SETNX and GET.
			conflict(w)
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if string(val) == inProgress {
		conflict(w)
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(val, &stored); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set(HeaderHit, "true")
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func conflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_, _ = w.Write([]byte(`{"error": "concurrent request"}`))
}

// recorder tees the response so it can be stored once the handler returns.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
