package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"tenantgate/internal/platform/config"
	"tenantgate/internal/platform/logger"
	"tenantgate/internal/platform/tracer"
	"tenantgate/internal/tenant/bootstrap"
	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/overlay"
	"tenantgate/internal/tenant/properties"
	"tenantgate/internal/tenant/refresh"
	"tenantgate/internal/tenant/registry"
	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/migrations"
)

// main wires the tenant subsystem, exposes the HTTP router and owns the
// process lifecycle. Tenant logic lives in internal/tenant.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("tenantgate stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Server, log *slog.Logger) error {
	log.Info("initializing tenantgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"properties_file", cfg.Properties.File,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tenantMetrics := metrics.New(reg)
	metrics.RegisterActiveScopes(reg, tenantctx.Active)

	var tr tracer.Tracer = tracer.NewNoop()
	if cfg.OTelEnabled {
		tr = tracer.NewOTel()
	}

	base, err := properties.LoadFile(cfg.Properties.File)
	if err != nil {
		return fmt.Errorf("load tenant properties: %w", err)
	}
	env := properties.NewEnvironment(base)
	tenants := registry.New(env, registry.WithLogger(log))
	generator := overlay.New(env, overlay.WithLogger(log))

	pools := datasource.NewRegistry(
		datasource.WithLogger(log),
		datasource.WithMetrics(tenantMetrics),
	)
	defer func() {
		if err := pools.Close(); err != nil {
			log.Error("closing tenant pools failed", "error", err)
		}
	}()

	runner := migrations.NewRunner(migrations.FS,
		migrations.WithLogger(log),
		migrations.WithTracer(tr),
	)
	bootstrapper := bootstrap.New(runner, cfg.Bootstrap.Changelog,
		bootstrap.WithLogger(log),
		bootstrap.WithMetrics(tenantMetrics),
		bootstrap.WithTracer(tr),
		bootstrap.WithConcurrency(cfg.Bootstrap.Concurrency),
	)
	manager := datasource.NewManager(tenants, pools, generator, env,
		datasource.WithManagerLogger(log),
		datasource.WithBootstrapper(bootstrapper, pools),
	)

	report := manager.Initialize(ctx)
	log.InfoContext(ctx, "tenants initialized",
		"installed", pools.TenantIDs(),
		"failed", report.Failed,
	)

	reloader := refresh.NewReloader(env, refresh.FileLoader(cfg.Properties.File), manager,
		refresh.WithLogger(log),
		refresh.WithMetrics(tenantMetrics),
	)

	bus, err := newBus(ctx, cfg, reloader, reg, log)
	if err != nil {
		return err
	}
	defer bus.Close()

	cleanupJob, err := newCleanupJob(cfg, tenants, pools, tenantMetrics, tr, log)
	if err != nil {
		return err
	}

	router := newRouter(routerDeps{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  tenantMetrics,
		tenants:  tenants,
		pools:    pools,
		reloader: reloader,
		bus:      bus,
		cleanup:  cleanupJob,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Properties.PollInterval > 0 {
		watcher := refresh.NewWatcher(cfg.Properties.File, cfg.Properties.PollInterval, reloader, log)
		g.Go(func() error {
			return ignoreCancel(watcher.Run(gctx))
		})
	}

	if cfg.Cleanup.Enabled {
		g.Go(func() error {
			return ignoreCancel(cleanupJob.Start(gctx))
		})
	}

	bus.Start(gctx, g)

	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
