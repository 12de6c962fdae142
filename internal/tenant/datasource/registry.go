// Package datasource keeps one live connection pool per configured tenant and
// reacts to configuration changes by adding, replacing or removing pools.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"tenantgate/internal/platform/database"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/pkg/platform/sentinel"
	"tenantgate/pkg/validation"
)

// ErrDatasourceUpdate wraps failures to install or remove a tenant pool.
var ErrDatasourceUpdate = errors.New("datasource update failed")

// Handle is an open connection pool.
type Handle interface {
	DB() *sql.DB
	Health(ctx context.Context) error
	Close() error
}

// Opener opens a pool for a tenant's properties.
type Opener func(ctx context.Context, tenantID string, props models.DatabaseProperties) (Handle, error)

// OpenPool opens a database.Pool from props.
func OpenPool(ctx context.Context, _ string, props models.DatabaseProperties) (Handle, error) {
	pool, err := database.Open(ctx, ToOptions(props))
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// ToOptions maps tenant properties onto pool options.
func ToOptions(props models.DatabaseProperties) database.Options {
	return database.Options{
		Driver:                   props.Driver,
		URL:                      props.URL,
		Username:                 props.Username,
		Password:                 props.Password,
		MinIdleConns:             props.MinPoolSize,
		MaxOpenConns:             props.MaxPoolSize,
		ConnectTimeout:           props.ConnectionTimeout,
		MaxIdleTime:              props.MaxIdleTime,
		SearchPath:               props.DefaultSchema,
		StatementCacheCapacity:   props.StatementCacheCapacity,
		DescriptionCacheCapacity: props.DescriptionCacheCapacity,
	}
}

// Entry is an installed pool. Entries are replaced whole, never mutated.
type Entry struct {
	TenantID    string
	Handle      Handle
	Properties  models.DatabaseProperties
	InstalledAt time.Time
}

type entries = map[string]*Entry

// Registry maps tenant IDs to pools. Reads load an immutable map without
// locking; writers copy the map, swap it, then close any replaced pool.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[entries]
	open    Opener
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOpener replaces the pool opener.
func WithOpener(open Opener) RegistryOption {
	return func(r *Registry) {
		r.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records registry mutations.
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{open: OpenPool, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	empty := entries{}
	r.current.Store(&empty)
	return r
}

func (r *Registry) snapshot() entries {
	return *r.current.Load()
}

// AddOrUpdate opens a pool for props and installs it under tenantID, closing
// the pool it replaces. On failure the previous pool stays installed.
func (r *Registry) AddOrUpdate(ctx context.Context, tenantID string, props models.DatabaseProperties) (err error) {
	op := "add"
	defer func() { r.metrics.IncDatasourceUpdate(op, err) }()

	if tenantID == "" {
		return fmt.Errorf("%w: %w", ErrDatasourceUpdate, tenantctx.ErrNoTenant)
	}
	if err := validation.Validate(props); err != nil {
		return fmt.Errorf("%w: tenant %s: %w", ErrDatasourceUpdate, tenantID, err)
	}

	handle, err := r.open(ctx, tenantID, props)
	if err != nil {
		return fmt.Errorf("%w: tenant %s: %w", ErrDatasourceUpdate, tenantID, err)
	}

	entry := &Entry{TenantID: tenantID, Handle: handle, Properties: props, InstalledAt: r.now()}

	r.mu.Lock()
	next := maps.Clone(r.snapshot())
	previous, replaced := next[tenantID]
	next[tenantID] = entry
	r.current.Store(&next)
	size := len(next)
	r.mu.Unlock()

	if replaced {
		op = "update"
		r.closeHandle(ctx, previous)
	}
	r.metrics.SetDatasourcesActive(size)
	r.logger.InfoContext(ctx, "tenant_datasource_installed",
		"tenant_id", tenantID,
		"replaced", replaced,
		"props", props,
	)
	return nil
}

// Remove uninstalls and closes tenantID's pool. Removing an absent tenant is a no-op.
func (r *Registry) Remove(ctx context.Context, tenantID string) (err error) {
	defer func() { r.metrics.IncDatasourceUpdate("remove", err) }()

	r.mu.Lock()
	previous, ok := r.snapshot()[tenantID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	next := maps.Clone(r.snapshot())
	delete(next, tenantID)
	r.current.Store(&next)
	size := len(next)
	r.mu.Unlock()

	r.metrics.SetDatasourcesActive(size)
	if cerr := previous.Handle.Close(); cerr != nil {
		return fmt.Errorf("%w: close pool for tenant %s: %w", ErrDatasourceUpdate, tenantID, cerr)
	}
	r.logger.InfoContext(ctx, "tenant_datasource_removed", "tenant_id", tenantID)
	return nil
}

// Get returns the installed entry for tenantID.
func (r *Registry) Get(tenantID string) (*Entry, bool) {
	e, ok := r.snapshot()[tenantID]
	return e, ok
}

// Has reports whether a pool is installed for tenantID.
func (r *Registry) Has(tenantID string) bool {
	_, ok := r.snapshot()[tenantID]
	return ok
}

// TenantIDs returns the tenants with installed pools, sorted.
func (r *Registry) TenantIDs() []string {
	return slices.Sorted(maps.Keys(r.snapshot()))
}

// DB returns the pool of the tenant bound to ctx.
func (r *Registry) DB(ctx context.Context) (*sql.DB, error) {
	tenantID, ok := tenantctx.FromContext(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	e, ok := r.Get(tenantID)
	if !ok {
		return nil, fmt.Errorf("no datasource for tenant %s: %w", tenantID, sentinel.ErrNotFound)
	}
	return e.Handle.DB(), nil
}

// Health pings every installed pool.
func (r *Registry) Health(ctx context.Context) map[string]error {
	snap := r.snapshot()
	out := make(map[string]error, len(snap))
	for id, e := range snap {
		out[id] = e.Handle.Health(ctx)
	}
	return out
}

// Close uninstalls and closes every pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	old := r.snapshot()
	empty := entries{}
	r.current.Store(&empty)
	r.mu.Unlock()

	var errs []error
	for id, e := range old {
		if err := e.Handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pool for tenant %s: %w", id, err))
		}
	}
	r.metrics.SetDatasourcesActive(0)
	return errors.Join(errs...)
}

func (r *Registry) closeHandle(ctx context.Context, e *Entry) {
	if err := e.Handle.Close(); err != nil {
		r.logger.WarnContext(ctx, "closing replaced pool failed",
			"tenant_id", e.TenantID,
			"error", err,
		)
	}
}
