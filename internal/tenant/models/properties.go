package models

import (
	"log/slog"
	"strings"
	"time"
)

// Property keys read from the tenant property source.
const (
	KeyMultitenantEnabled = "tenant.multitenant.enabled"
	KeyDefaultTenant      = "tenant.default"
	KeyTenantIDs          = "tenant.ids"

	// ProfilePrefix starts every per-tenant key: tenant-profile.<tenantID>.<property>.
	ProfilePrefix = "tenant-profile."
	// DefaultProfile is the template profile overlaid onto tenants without overrides.
	DefaultProfile = "default"
)

// Database property names under tenant-profile.<tenantID>.
const (
	PropURL                      = "url"
	PropUsername                 = "username"
	PropPassword                 = "password"
	PropDriver                   = "driver"
	PropMinPoolSize              = "min-pool-size"
	PropMaxPoolSize              = "max-pool-size"
	PropConnectionTimeout        = "connection-timeout-ms"
	PropMaxIdleTime              = "max-idle-time"
	PropDefaultSchema            = "default-schema"
	PropStatementCacheCapacity   = "statement-cache-capacity"
	PropDescriptionCacheCapacity = "description-cache-capacity"
)

var databaseProperties = map[string]struct{}{
	PropURL:                      {},
	PropUsername:                 {},
	PropPassword:                 {},
	PropDriver:                   {},
	PropMinPoolSize:              {},
	PropMaxPoolSize:              {},
	PropConnectionTimeout:        {},
	PropMaxIdleTime:              {},
	PropDefaultSchema:            {},
	PropStatementCacheCapacity:   {},
	PropDescriptionCacheCapacity: {},
}

// IsDatabaseProperty reports whether a profile property affects the tenant's pool.
func IsDatabaseProperty(name string) bool {
	_, ok := databaseProperties[name]
	return ok
}

// ProfileKey builds tenant-profile.<tenantID>.<property>.
func ProfileKey(tenantID, property string) string {
	return ProfilePrefix + tenantID + "." + property
}

// ParseProfileKey splits tenant-profile.<tenantID>.<property>. Property names never
// contain dots, so the tenant ID is everything between the prefix and the last dot.
func ParseProfileKey(key string) (tenantID, property string, ok bool) {
	rest, found := strings.CutPrefix(key, ProfilePrefix)
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, ".")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// DatabaseProperties is the full connection bundle for one tenant. It is rebuilt
// from the property source on every add or update and never mutated in place.
type DatabaseProperties struct {
	URL                      string `validate:"required"`
	Username                 string
	Password                 string
	Driver                   string `validate:"omitempty,oneof=pgx postgres"`
	MinPoolSize              int    `validate:"min=0"`
	MaxPoolSize              int    `validate:"min=1,gtefield=MinPoolSize"`
	ConnectionTimeout        time.Duration
	MaxIdleTime              time.Duration
	DefaultSchema            string `validate:"omitempty,schemaname"`
	StatementCacheCapacity   int    `validate:"min=0"`
	DescriptionCacheCapacity int    `validate:"min=0"`
}

// Schema returns the configured default schema, or public.
func (p DatabaseProperties) Schema() string {
	if p.DefaultSchema == "" {
		return "public"
	}
	return p.DefaultSchema
}

// LogValue keeps credentials out of logs.
func (p DatabaseProperties) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("driver", p.Driver),
		slog.String("username", p.Username),
		slog.String("schema", p.Schema()),
		slog.Int("min_pool_size", p.MinPoolSize),
		slog.Int("max_pool_size", p.MaxPoolSize),
	)
}
