// Package requestcontext carries request-scoped values (request ID, caller
// identity, request time) through context.Context.
package requestcontext

import (
	"context"
	"time"

	id "vcregistry/pkg/domain"
)

type (
	requestIDKey struct{}
	callerIDKey  struct{}
	timeKey      struct{}
	clientIPKey  struct{}
	agentKey     struct{}
)

// WithRequestID stores the correlation ID for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation ID or "" when none was set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCallerID stores the authenticated caller identity.
func WithCallerID(ctx context.Context, caller id.CallerID) context.Context {
	return context.WithValue(ctx, callerIDKey{}, caller)
}

// CallerID returns the authenticated caller, or the zero CallerID when the
// request was not authenticated.
func CallerID(ctx context.Context) id.CallerID {
	if v, ok := ctx.Value(callerIDKey{}).(id.CallerID); ok {
		return v
	}
	return ""
}

// WithClientIP stores the resolved client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the client address or "" when none was resolved.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientAgent stores a coarse description of the client software.
func WithClientAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

// ClientAgent returns the client description or "".
func ClientAgent(ctx context.Context) string {
	if v, ok := ctx.Value(agentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins the logical "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}

// TimeFrom returns the pinned time, if any.
func TimeFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(timeKey{}).(time.Time)
	return t, ok
}

// Now returns the request-scoped time, falling back to time.Now() outside
// of an HTTP request. The wall clock is not monotonic; code that stamps
// registry records uses TimeFrom with its own clock.Clock instead.
func Now(ctx context.Context) time.Time {
	if t, ok := TimeFrom(ctx); ok {
		return t
	}
	return time.Now()
}
