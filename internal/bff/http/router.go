package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/envention/union/internal/bff/metrics"
	"github.com/envention/union/internal/bff/service"
	"github.com/envention/union/pkg/authsdk"
	"github.com/envention/union/pkg/httpx"
	"github.com/envention/union/pkg/slogx"
)

// KeyStatus reports whether IdP signing keys are loaded. keycloak.Client
// implements it.
type KeyStatus interface {
	KeysReady() bool
	PrefetchKeys(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	auth         *service.AuthService
	keys         KeyStatus
	metrics      *metrics.Metrics
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// Upstream is the business API served under /api/v1/. Nil leaves the
	// proxy unregistered.
	Upstream *url.URL

	// UpstreamTransport defaults to http.DefaultTransport.
	UpstreamTransport http.RoundTripper
}

func NewRouter(
	auth *service.AuthService,
	keys KeyStatus,
	m *metrics.Metrics,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		auth:         auth,
		keys:         keys,
		metrics:      m,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAPI()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern behind mws and, when metrics are on,
// counts it under the pattern.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	h = httpx.Chain(h, mws...)
	if r.metrics != nil {
		h = r.metrics.Instrument(pattern, h)
	}
	r.Mux.Handle(pattern, h)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.auth}

	// Credential submission, limited per IP and username
	r.handle("POST "+authsdk.PathLogin, http.HandlerFunc(h.HandleLogin),
		httpx.RateLimitByIPAndBodyField(httpx.StrictLimit, "username"),
	)

	r.handle("POST "+authsdk.PathLogout, http.HandlerFunc(h.HandleLogout),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)

	r.handle("POST "+authsdk.PathRefresh, http.HandlerFunc(h.HandleRefresh),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)

	// Probed on every page load
	r.handle("GET "+authsdk.PathSession, http.HandlerFunc(h.HandleSession),
		httpx.RateLimitByIP(httpx.PublicLimit),
	)
}

func (r *Router) registerAPI() {
	if r.Upstream == nil {
		return
	}

	proxy := &ProxyHandler{
		Auth:      r.auth,
		Upstream:  r.Upstream,
		Transport: r.UpstreamTransport,
	}
	if r.metrics != nil {
		proxy.Observer = r.metrics
	}

	r.handle("/api/v1/", proxy,
		RequireSession(r.auth),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
}

func (r *Router) registerSystem() {
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion),
		httpx.RateLimitByIP(httpx.LenientLimit),
	)
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.keys),
		httpx.RateLimitByIP(httpx.LenientLimit),
	)
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
