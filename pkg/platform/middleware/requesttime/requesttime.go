// Package requesttime pins one "now" per request, so a stored event's
// server_time and everything logged for that request agree.
package requesttime

import (
	"net/http"
	"time"

	"pdftrack/pkg/requestcontext"
)

// Middleware stamps each request with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return Clock(time.Now)(next)
}

// Clock stamps each request with now(). Tests pass a fixed clock.
func Clock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
