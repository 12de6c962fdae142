// Package overlay derives per-tenant profile keys from the default profile.
package overlay

import (
	"log/slog"
	"strings"

	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/properties"
	str "tenantgate/pkg/platform/strings"
)

// Generator builds the overlay layer of an Environment.
type Generator struct {
	env    *properties.Environment
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New returns a Generator reading from and writing to env.
func New(env *properties.Environment, opts ...Option) *Generator {
	g := &Generator{env: env, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns tenant-profile.<id>.<key> for every tenant in the
// comma-separated ids list and every tenant-profile.default.<key> in the base
// layer, unless the base layer already sets that key for the tenant. The
// literal "default" entry is skipped.
func (g *Generator) Generate(ids string) map[string]string {
	overlay := map[string]string{}
	tenants := str.SplitList(ids)
	if len(tenants) == 0 {
		g.logger.Warn("tenant_overlay_skipped", "reason", "no tenant ids configured")
		return overlay
	}

	defaultPrefix := models.ProfilePrefix + models.DefaultProfile + "."
	defaults := g.env.BaseKeysWithPrefix(defaultPrefix)
	base := g.env.Base()

	for _, id := range tenants {
		if id == models.DefaultProfile {
			continue
		}
		for _, key := range defaults {
			property := strings.TrimPrefix(key, defaultPrefix)
			target := models.ProfileKey(id, property)
			if _, explicit := base[target]; explicit {
				continue
			}
			overlay[target] = base[key]
		}
	}
	return overlay
}

// Regenerate rebuilds the overlay from the current tenant.ids and installs it
// wholesale, so keys of removed tenants disappear.
func (g *Generator) Regenerate() {
	ids, _ := g.env.Get(models.KeyTenantIDs)
	overlay := g.Generate(ids)
	g.env.SetOverlay(overlay)
	g.logger.Info("tenant_overlay_regenerated", "keys", len(overlay))
}
