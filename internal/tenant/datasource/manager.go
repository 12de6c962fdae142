package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"tenantgate/internal/tenant/bootstrap"
	"tenantgate/internal/tenant/models"
)

//go:generate mockgen -source=manager.go -destination=mocks/mocks.go -package=mocks Installer,TenantSource,Bootstrapper

// Installer mutates the set of installed pools.
type Installer interface {
	AddOrUpdate(ctx context.Context, tenantID string, props models.DatabaseProperties) error
	Remove(ctx context.Context, tenantID string) error
	Has(tenantID string) bool
}

// TenantSource is the tenant registry as seen by the manager.
type TenantSource interface {
	Refresh()
	AllTenantIDs() []string
	PropertiesFor(tenantID string) (models.DatabaseProperties, error)
}

// Bootstrapper prepares schemas for newly installed pools.
type Bootstrapper interface {
	BootstrapAll(ctx context.Context, targets []bootstrap.Target) []bootstrap.Result
}

// OverlayRegenerator rebuilds the generated per-tenant properties.
type OverlayRegenerator interface {
	Regenerate()
}

// BaseLookup reports explicit per-tenant settings in the property file.
type BaseLookup interface {
	HasBase(key string) bool
}

// PoolLookup resolves the pool installed for a tenant.
type PoolLookup interface {
	Get(tenantID string) (*Entry, bool)
}

// ChangeReport summarizes how one notification was applied.
type ChangeReport struct {
	Added   []string          `json:"added,omitempty"`
	Removed []string          `json:"removed,omitempty"`
	Updated []string          `json:"updated,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (r *ChangeReport) fail(tenantID string, err error) {
	if r.Failed == nil {
		r.Failed = map[string]string{}
	}
	r.Failed[tenantID] = err.Error()
}

// Manager applies configuration-change notifications to the pool registry.
// Calls must be serialized by the caller; the tenant snapshot used for diffing
// is private to the manager.
type Manager struct {
	tenants   TenantSource
	installer Installer
	pools     PoolLookup
	overlay   OverlayRegenerator
	base      BaseLookup
	bootstrap Bootstrapper
	logger    *slog.Logger

	known []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBootstrapper bootstraps schemas of newly installed pools.
func WithBootstrapper(b Bootstrapper, pools PoolLookup) ManagerOption {
	return func(m *Manager) {
		m.bootstrap = b
		m.pools = pools
	}
}

// NewManager returns a Manager.
func NewManager(tenants TenantSource, installer Installer, overlay OverlayRegenerator, base BaseLookup, opts ...ManagerOption) *Manager {
	m := &Manager{
		tenants:   tenants,
		installer: installer,
		overlay:   overlay,
		base:      base,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize regenerates the overlay, installs every configured tenant and
// bootstraps the installed pools.
func (m *Manager) Initialize(ctx context.Context) ChangeReport {
	m.overlay.Regenerate()
	m.tenants.Refresh()

	var report ChangeReport
	desired := m.tenants.AllTenantIDs()
	var installed []string
	for _, id := range desired {
		if m.install(ctx, id, &report) {
			report.Added = append(report.Added, id)
			installed = append(installed, id)
		}
	}
	m.known = desired
	m.bootstrapTenants(ctx, installed, &report)
	m.logReport(ctx, "tenant_datasources_initialized", report)
	return report
}

// HandleChange applies the changed property keys:
//   - a tenant.ids change installs added tenants and removes dropped ones;
//   - each tenant with changed database keys is rebuilt once;
//   - default profile changes rebuild tenants inheriting the changed key.
//
// A failure for one tenant never stops processing of the others.
func (m *Manager) HandleChange(ctx context.Context, keys []string) ChangeReport {
	var report ChangeReport
	changed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		changed[k] = struct{}{}
	}

	_, idsChanged := changed[models.KeyTenantIDs]
	defaultPrefix := models.ProfilePrefix + models.DefaultProfile + "."
	templateChanged := slices.ContainsFunc(keys, func(k string) bool {
		return strings.HasPrefix(k, defaultPrefix)
	})
	_, flagChanged := changed[models.KeyMultitenantEnabled]
	_, defaultChanged := changed[models.KeyDefaultTenant]

	// Removing a tenant override must bring back the inherited template value,
	// so any profile change regenerates the overlay.
	profileChanged := slices.ContainsFunc(keys, func(k string) bool {
		return strings.HasPrefix(k, models.ProfilePrefix)
	})
	if idsChanged || profileChanged {
		m.overlay.Regenerate()
	}
	if idsChanged || templateChanged || flagChanged || defaultChanged {
		m.tenants.Refresh()
	}

	desired := m.tenants.AllTenantIDs()
	handled := map[string]struct{}{}
	var installed []string

	if idsChanged {
		added, removed := diff(m.known, desired)
		for _, id := range added {
			handled[id] = struct{}{}
			if m.install(ctx, id, &report) {
				report.Added = append(report.Added, id)
				installed = append(installed, id)
			}
		}
		for _, id := range removed {
			handled[id] = struct{}{}
			if err := m.safely(func() error { return m.installer.Remove(ctx, id) }); err != nil {
				m.logger.ErrorContext(ctx, "tenant_datasource_remove_failed", "tenant_id", id, "error", err)
				report.fail(id, err)
				continue
			}
			report.Removed = append(report.Removed, id)
		}
		m.known = desired
	}

	for _, id := range m.rebuildTargets(keys, desired) {
		if _, done := handled[id]; done {
			continue
		}
		wasInstalled := m.installer.Has(id)
		if m.install(ctx, id, &report) {
			if wasInstalled {
				report.Updated = append(report.Updated, id)
			} else {
				report.Added = append(report.Added, id)
				installed = append(installed, id)
			}
		}
	}

	m.bootstrapTenants(ctx, installed, &report)
	m.logReport(ctx, "tenant_datasources_changed", report)
	return report
}

// rebuildTargets returns, in first-seen order, the desired tenants whose pool
// depends on one of keys.
func (m *Manager) rebuildTargets(keys []string, desired []string) []string {
	desiredSet := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	var targets []string
	seen := map[string]struct{}{}
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, key := range keys {
		id, prop, ok := models.ParseProfileKey(key)
		if !ok || !models.IsDatabaseProperty(prop) {
			continue
		}
		if id == models.DefaultProfile {
			for _, t := range desired {
				if t != models.DefaultProfile && !m.base.HasBase(models.ProfileKey(t, prop)) {
					add(t)
				}
			}
		}
		if _, ok := desiredSet[id]; ok {
			add(id)
		}
	}
	return targets
}

// install builds tenantID's properties and installs its pool. It reports
// whether a pool was installed.
func (m *Manager) install(ctx context.Context, tenantID string, report *ChangeReport) bool {
	props, err := m.tenants.PropertiesFor(tenantID)
	if err != nil {
		m.logger.WarnContext(ctx, "tenant_datasource_skipped", "tenant_id", tenantID, "reason", err.Error())
		report.Skipped = append(report.Skipped, tenantID)
		return false
	}
	if err := m.safely(func() error { return m.installer.AddOrUpdate(ctx, tenantID, props) }); err != nil {
		m.logger.ErrorContext(ctx, "tenant_datasource_install_failed", "tenant_id", tenantID, "error", err)
		report.fail(tenantID, err)
		return false
	}
	return true
}

func (m *Manager) bootstrapTenants(ctx context.Context, tenantIDs []string, report *ChangeReport) {
	if m.bootstrap == nil || len(tenantIDs) == 0 {
		return
	}
	targets := make([]bootstrap.Target, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		e, ok := m.pools.Get(id)
		if !ok {
			continue
		}
		targets = append(targets, bootstrap.Target{TenantID: id, DB: e.Handle.DB(), Schema: e.Properties.Schema()})
	}
	for _, res := range bootstrap.Failed(m.bootstrap.BootstrapAll(ctx, targets)) {
		report.fail(res.TenantID, res.Err)
	}
}

// safely runs fn, converting a panic into an error.
func (m *Manager) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDatasourceUpdate, r)
		}
	}()
	return fn()
}

func (m *Manager) logReport(ctx context.Context, event string, r ChangeReport) {
	m.logger.InfoContext(ctx, event,
		"added", r.Added,
		"removed", r.Removed,
		"updated", r.Updated,
		"skipped", r.Skipped,
		"failed", len(r.Failed),
	)
}

// diff returns the IDs only in next and the IDs only in prev.
func diff(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
