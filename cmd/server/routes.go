package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenantgate/internal/platform/config"
	"tenantgate/internal/platform/health"
	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/handler"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/refresh"
	"tenantgate/internal/tenant/registry"
	"tenantgate/internal/tenant/resolver"
	auditstore "tenantgate/internal/tenant/store/audit"
	"tenantgate/internal/tenant/workers/cleanup"
	adminmw "tenantgate/pkg/platform/middleware/admin"
	request "tenantgate/pkg/platform/middleware/request"
)

type routerDeps struct {
	cfg      *config.Server
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tenants  *registry.Registry
	pools    *datasource.Registry
	reloader *refresh.Reloader
	bus      *refreshBus
	cleanup  *cleanup.Job
}

// newRouter mounts the tenant-agnostic routes (/health, /metrics, /admin)
// ahead of the resolution filter, which guards everything else.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.log))
	r.Use(request.Logger(d.log))
	r.Use(request.LatencyMiddleware(request.NewMetrics(d.registry)))

	healthHandler := health.New(d.cfg.Environment)
	healthHandler.RegisterGroup("tenant", d.pools.Health)
	d.bus.RegisterChecks(healthHandler)
	healthHandler.Register(r)

	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))

	opts := []handler.Option{
		handler.WithAudits(auditstore.NewPostgres(d.pools)),
		handler.WithCleanup(d.cleanup),
		handler.WithLogger(d.log),
	}
	if p := d.bus.Publisher(); p != nil {
		opts = append(opts, handler.WithPublisher(p))
	}
	adminHandler := handler.New(d.reloader, d.tenants, d.pools, opts...)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(d.cfg.AdminToken, d.log))
		adminHandler.Register(r)
	})

	res := resolver.New(d.tenants, resolverConfig(d.cfg.Resolver))
	filter := resolver.NewFilter(res,
		resolver.WithLogger(d.log),
		resolver.WithMetrics(d.metrics),
	)
	r.Group(func(r chi.Router) {
		if d.cfg.RequestTimeout > 0 {
			r.Use(request.Timeout(d.cfg.RequestTimeout))
		}
		r.Use(filter.Handler)
		r.NotFound(handler.ResolvedTenant(d.pools))
	})

	return r
}

func resolverConfig(c config.Resolver) resolver.Config {
	cfg := resolver.DefaultConfig()
	cfg.HeaderName = c.HeaderName
	cfg.ParamName = c.ParamName
	cfg.StaticPrefixes = c.StaticPrefixes
	cfg.StaticPaths = c.StaticPaths
	cfg.NotFoundStatus = c.NotFoundStatus
	cfg.InvalidStatus = c.InvalidStatus
	return cfg
}
