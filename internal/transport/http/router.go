package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcregistry/internal/credential/handler"
	"vcregistry/internal/platform/health"
	"vcregistry/pkg/platform/clock"
	"vcregistry/pkg/platform/middleware/auth"
	"vcregistry/pkg/platform/middleware/metadata"
	"vcregistry/pkg/platform/middleware/request"
	"vcregistry/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// Deps are the collaborators the router mounts. Metrics and Gatherer are
// optional; without a Gatherer /metrics is not served.
type Deps struct {
	Logger         *slog.Logger
	Credentials    *handler.Handler
	Health         *health.Handler
	TokenValidator auth.TokenValidator
	Clock          clock.Clock
	Metrics        *request.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []netip.Prefix
}

// NewRouter wires the registry endpoints with the middleware stack.
// Reads are public; issue and revoke require a bearer token.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientIP(d.TrustedProxies))
	r.Use(requesttime.Middleware(d.Clock))
	r.Use(request.Logger(d.Logger))
	r.Use(request.Latency(d.Metrics))
	r.Use(request.Timeout(timeout))
	if d.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(d.MaxBodyBytes))
	}
	r.Use(request.ContentTypeJSON)

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Credentials.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(d.TokenValidator, d.Logger))
		d.Credentials.RegisterIssuer(r)
	})

	return r
}
