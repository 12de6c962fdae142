// Package registry answers which tenants exist and what their database
// properties are, from the current property environment.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/properties"
	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/sentinel"
	str "tenantgate/pkg/platform/strings"
	"tenantgate/pkg/validation"
)

// Defaults applied when a tenant profile omits a pool setting.
const (
	DefaultMaxPoolSize       = 10
	DefaultConnectionTimeout = 30 * time.Second
	DefaultMaxIdleTime       = 10 * time.Minute
	DefaultDriver            = "pgx"
)

type snapshot struct {
	multitenancy bool
	defaultID    string
	ids          []string
	known        map[string]struct{}
}

// Registry is a read-mostly view over tenant configuration. Refresh swaps an
// immutable snapshot, so readers never observe a half-applied change.
type Registry struct {
	env    *properties.Environment
	logger *slog.Logger
	state  atomic.Pointer[snapshot]
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New returns an unloaded Registry. Call Refresh before use.
func New(env *properties.Environment, opts ...Option) *Registry {
	r := &Registry{env: env, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns a Registry refreshed from env.
func Load(env *properties.Environment, opts ...Option) *Registry {
	r := New(env, opts...)
	r.Refresh()
	return r
}

// Refresh re-reads the multitenancy flag, default tenant and tenant list.
func (r *Registry) Refresh() {
	ids, _ := r.env.Get(models.KeyTenantIDs)
	next := &snapshot{
		multitenancy: r.env.Bool(models.KeyMultitenantEnabled, false),
		defaultID:    r.env.String(models.KeyDefaultTenant, ""),
		ids:          str.SplitList(ids),
		known:        map[string]struct{}{},
	}
	for _, id := range next.ids {
		next.known[id] = struct{}{}
	}
	slices.Sort(next.ids)
	if next.defaultID != "" {
		if _, ok := next.known[next.defaultID]; !ok {
			r.logger.Warn("default tenant is not listed in tenant.ids", "tenant_id", next.defaultID)
		}
	}
	r.state.Store(next)
	r.logger.Info("tenant_registry_refreshed",
		"tenants", len(next.ids),
		"multitenancy", next.multitenancy,
		"default_tenant", next.defaultID,
	)
}

func (r *Registry) current() *snapshot {
	if s := r.state.Load(); s != nil {
		return s
	}
	return &snapshot{known: map[string]struct{}{}}
}

// Exists reports whether tenantID is configured. Comparison is case-sensitive.
func (r *Registry) Exists(tenantID string) bool {
	_, ok := r.current().known[tenantID]
	return ok
}

// AllTenantIDs returns the configured tenant IDs in sorted order.
func (r *Registry) AllTenantIDs() []string {
	return slices.Clone(r.current().ids)
}

// MultitenancyEnabled reports tenant.multitenant.enabled.
func (r *Registry) MultitenancyEnabled() bool {
	return r.current().multitenancy
}

// DefaultTenantID reports tenant.default.
func (r *Registry) DefaultTenantID() string {
	return r.current().defaultID
}

// TenantIDs enumerates tenants for batch work. It fails when the registry has
// never been loaded.
func (r *Registry) TenantIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.state.Load()
	if s == nil {
		return nil, fmt.Errorf("tenant registry not loaded: %w", sentinel.ErrUnavailable)
	}
	return slices.Clone(s.ids), nil
}

// PropertiesFor builds the database property bundle for tenantID from the
// environment, overlay included.
func (r *Registry) PropertiesFor(tenantID string) (models.DatabaseProperties, error) {
	if !r.Exists(tenantID) {
		return models.DatabaseProperties{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("tenant %s is not configured", tenantID))
	}

	get := func(prop string) string {
		return r.env.String(models.ProfileKey(tenantID, prop), "")
	}
	props := models.DatabaseProperties{
		URL:           get(models.PropURL),
		Username:      get(models.PropUsername),
		Password:      get(models.PropPassword),
		Driver:        strings.ToLower(get(models.PropDriver)),
		DefaultSchema: get(models.PropDefaultSchema),
	}
	if props.Driver == "" {
		props.Driver = DefaultDriver
	}

	var err error
	ints := []struct {
		prop   string
		target *int
		def    int
	}{
		{models.PropMinPoolSize, &props.MinPoolSize, 0},
		{models.PropMaxPoolSize, &props.MaxPoolSize, DefaultMaxPoolSize},
		{models.PropStatementCacheCapacity, &props.StatementCacheCapacity, 0},
		{models.PropDescriptionCacheCapacity, &props.DescriptionCacheCapacity, 0},
	}
	for _, f := range ints {
		if *f.target, err = parseInt(get(f.prop), f.def); err != nil {
			return models.DatabaseProperties{}, invalidProperty(tenantID, f.prop, err)
		}
	}
	if props.ConnectionTimeout, err = parseDuration(get(models.PropConnectionTimeout), DefaultConnectionTimeout); err != nil {
		return models.DatabaseProperties{}, invalidProperty(tenantID, models.PropConnectionTimeout, err)
	}
	if props.MaxIdleTime, err = parseDuration(get(models.PropMaxIdleTime), DefaultMaxIdleTime); err != nil {
		return models.DatabaseProperties{}, invalidProperty(tenantID, models.PropMaxIdleTime, err)
	}

	if err := validation.Validate(props); err != nil {
		return models.DatabaseProperties{}, err
	}
	return props, nil
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return properties.ParseDuration(v)
}

func invalidProperty(tenantID, prop string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeValidation,
		fmt.Sprintf("%s is invalid for tenant %s", prop, tenantID))
}
