package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "github.com/wdb/iiifgate/api/gate" // Swagger docs
	"github.com/wdb/iiifgate/internal/gate/service"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/httpx"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	codec *iiiftoken.Codec

	DecisionService *service.DecisionService
	RefreshService  *service.RefreshService

	// Sessions identifies callers of the refresh endpoint.
	Sessions      *session.Resolver
	SessionCookie string

	// SessionBackends are pinged by readyz. Optional.
	SessionBackends []Pinger

	// Gatherer backs /metrics. Optional.
	Gatherer prometheus.Gatherer
}

func NewRouter(
	buildVersion string,
	st store.Store,
	codec *iiiftoken.Codec,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		codec:        codec,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerDecision()
	r.registerTokens()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			WDB IIIF Gate API
//	@version		0.1.0
//	@description	Authorizes tile requests from the image server and issues short lived viewer tokens.
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerDecision() {
	// Called once per tile by the image server, limited per server address.
	h := &DecisionHandler{DecisionService: r.DecisionService}
	r.Mux.Handle("POST /wdb/api/cantaloupe_auth",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.DecisionLimit),
		),
	)
}

func (r *Router) registerTokens() {
	h := &TokenHandler{RefreshService: r.RefreshService, Store: r.store}
	r.Mux.Handle("GET /wdb/api/iiif_token/{page}",
		httpx.Chain(h,
			SessionMiddleware(r.Sessions, r.SessionCookie),
			httpx.RateLimitByIPAndPrincipal(httpx.RefreshLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.HealthLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.codec, r.SessionBackends...),
			httpx.RateLimitByIP(httpx.HealthLimit),
		),
	)

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}),
				httpx.RateLimitByIP(httpx.HealthLimit),
			),
		)
	}
}
