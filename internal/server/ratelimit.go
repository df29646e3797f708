package server

import (
	"context"
	"net/http"
	"strconv"
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

// RateLimitInfo carries the per-session message quota so responses advertise
// how much of the hourly window remains.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     string
}

// SetRateLimits stores rate limit info in context for the middleware to write as headers.
func SetRateLimits(ctx context.Context, rl *RateLimitInfo) {
	if holder, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder); ok {
		holder.info = rl
	}
}

// RateLimitHeaderMiddleware writes x-ratelimit-* headers on responses. The
// chat handler fills the info in after the session quota check, so the
// headers are written lazily on the first WriteHeader/Write call.
func RateLimitHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &rateLimitHolder{}
		ctx := context.WithValue(r.Context(), rateLimitContextKey{}, holder)
		wrapped := &rateLimitResponseWriter{ResponseWriter: w, holder: holder}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

type rateLimitHolder struct {
	info *RateLimitInfo
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	holder       *rateLimitHolder
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	rl := rw.holder.info
	if rl == nil || rl.Limit <= 0 {
		return
	}

	h := rw.Header()
	h.Set("x-ratelimit-limit", strconv.Itoa(rl.Limit))
	h.Set("x-ratelimit-remaining", strconv.Itoa(rl.Remaining))
	if rl.Reset != "" {
		h.Set("x-ratelimit-reset", rl.Reset)
	}
}
