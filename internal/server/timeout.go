package server

import (
	"context"
	"net/http"
	"time"
)

// requestTimeout bounds every request's context. Cancellation is
// cooperative: handlers watch ctx.Done(), nothing is forcibly terminated.
func requestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
