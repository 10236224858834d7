// Package requesttime pins a single logical timestamp to each HTTP request.
// Every registry operation served by the request (issuance stamping, expiry
// comparison, lifecycle events) observes the same "now".
package requesttime

import (
	"net/http"

	"vcregistry/pkg/platform/clock"
	"vcregistry/pkg/requestcontext"
)

// Middleware reads the clock once at the start of the request and stores the
// reading in the context. Read it back with requestcontext.Now.
func Middleware(c clock.Clock) func(http.Handler) http.Handler {
	if c == nil {
		c = clock.NewMonotonic(nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), c.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
