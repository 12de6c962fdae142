// Package bootstrap prepares a tenant's schema and applies its migrations.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tenantgate/internal/platform/tracer"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/pkg/validation"
)

//go:generate mockgen -source=bootstrap.go -destination=mocks/mocks.go -package=mocks MigrationRunner

var (
	// ErrSchemaBootstrap wraps every per-tenant bootstrap failure.
	ErrSchemaBootstrap = errors.New("schema bootstrap failed")
	// ErrInvalidSchemaName rejects schema names that are not plain identifiers.
	ErrInvalidSchemaName = errors.New("invalid schema name")
)

// MigrationRequest scopes one migration run to a tenant's schema.
type MigrationRequest struct {
	DB        *sql.DB
	Changelog string
	Schema    string
	// ContextTag selects tenant-specific migrations; it is the tenant ID.
	ContextTag string
}

// MigrationRunner applies a changelog to a schema.
type MigrationRunner interface {
	Migrate(ctx context.Context, req MigrationRequest) error
}

// Target is one tenant to bootstrap.
type Target struct {
	TenantID string
	DB       *sql.DB
	Schema   string
}

// Result is the outcome of bootstrapping one target.
type Result struct {
	TenantID string
	Duration time.Duration
	Err      error
}

// Bootstrapper ensures tenant schemas exist and are migrated.
type Bootstrapper struct {
	runner      MigrationRunner
	changelog   string
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logger
	}
}

// WithMetrics records bootstrap durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bootstrapper) {
		b.metrics = m
	}
}

// WithTracer sets the span tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(b *Bootstrapper) {
		b.tracer = t
	}
}

// WithConcurrency bounds how many tenants BootstrapAll processes at once.
func WithConcurrency(n int) Option {
	return func(b *Bootstrapper) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// New returns a Bootstrapper applying changelog through runner.
func New(runner MigrationRunner, changelog string, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		runner:      runner,
		changelog:   changelog,
		concurrency: 4,
		logger:      slog.Default(),
		tracer:      tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bootstrap creates the schema when missing and runs the migrations with the
// tenant bound to ctx. Panics from the runner are returned as errors.
func (b *Bootstrapper) Bootstrap(ctx context.Context, t Target) (err error) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "tenant.bootstrap",
		tracer.String("tenant_id", t.TenantID),
		tracer.String("schema", t.Schema),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = fmt.Errorf("%w: tenant %s: %w", ErrSchemaBootstrap, t.TenantID, err)
		}
		span.End(err)
		b.metrics.ObserveBootstrap(start, err)
	}()

	return tenantctx.Run(ctx, t.TenantID, func(ctx context.Context) error {
		if !validation.IsSchemaName(t.Schema) {
			return fmt.Errorf("%w: %q", ErrInvalidSchemaName, t.Schema)
		}
		if t.DB == nil {
			return errors.New("no connection pool")
		}
		if _, err := t.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, t.Schema)); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if err := b.runner.Migrate(ctx, MigrationRequest{
			DB:         t.DB,
			Changelog:  b.changelog,
			Schema:     t.Schema,
			ContextTag: t.TenantID,
		}); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		b.logger.InfoContext(ctx, "tenant_schema_bootstrapped",
			"schema", t.Schema,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
}

// BootstrapAll bootstraps every target with bounded parallelism. One tenant's
// failure never stops the others; results are returned in target order.
func (b *Bootstrapper) BootstrapAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			start := time.Now()
			err := b.Bootstrap(ctx, t)
			results[i] = Result{TenantID: t.TenantID, Duration: time.Since(start), Err: err}
			if err != nil {
				b.logger.ErrorContext(ctx, "tenant_schema_bootstrap_failed",
					"tenant_id", t.TenantID,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
