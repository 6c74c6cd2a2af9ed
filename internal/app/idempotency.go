package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukahub/dukahub/internal/platform/httpx"
)

// IdempotencyHeader is the client-supplied key for safe retries of ledger
// posts.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore claims and releases request keys. Keys are unique per
// (key, module) pair, so a release names the same module as the claim.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Idempotency rejects replays of mutating requests that carry an
// Idempotency-Key header. The key is claimed before the handler runs; if the
// handler fails server-side the claim is released so the client can retry
// with the same key.
func Idempotency(store IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if err := store.CheckAndInsert(r.Context(), key, r.URL.Path); err != nil {
				httpx.RespondError(w, err)
				return
			}

			recorder := &statusCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.status >= http.StatusInternalServerError {
				if err := store.Delete(r.Context(), key, r.URL.Path); err != nil {
					logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
				}
			}
		})
	}
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (w *statusCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
