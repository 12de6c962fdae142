package testutil

import (
	"maps"
	"strings"

	"tenantgate/internal/tenant/models"
)

// PropertiesBuilder assembles a tenant property set for tests.
type PropertiesBuilder struct {
	props map[string]string
}

// NewProperties starts a multi-tenant property set with no tenants.
func NewProperties() *PropertiesBuilder {
	return &PropertiesBuilder{props: map[string]string{
		models.KeyMultitenantEnabled: "true",
	}}
}

// SingleTenant disables multitenancy and makes tenantID the default.
func (b *PropertiesBuilder) SingleTenant(tenantID string) *PropertiesBuilder {
	b.props[models.KeyMultitenantEnabled] = "false"
	b.props[models.KeyDefaultTenant] = tenantID
	return b
}

// WithDefault sets the default tenant.
func (b *PropertiesBuilder) WithDefault(tenantID string) *PropertiesBuilder {
	b.props[models.KeyDefaultTenant] = tenantID
	return b
}

// WithTenants sets tenant.ids.
func (b *PropertiesBuilder) WithTenants(ids ...string) *PropertiesBuilder {
	b.props[models.KeyTenantIDs] = strings.Join(ids, ",")
	return b
}

// WithProfile sets one tenant-profile property.
func (b *PropertiesBuilder) WithProfile(tenantID, prop, value string) *PropertiesBuilder {
	b.props[models.ProfileKey(tenantID, prop)] = value
	return b
}

// WithTemplate sets a property of the default profile inherited by every tenant.
func (b *PropertiesBuilder) WithTemplate(prop, value string) *PropertiesBuilder {
	return b.WithProfile(models.DefaultProfile, prop, value)
}

// WithDatabase sets a tenant's url and schema.
func (b *PropertiesBuilder) WithDatabase(tenantID, url, schema string) *PropertiesBuilder {
	b.WithProfile(tenantID, models.PropURL, url)
	if schema != "" {
		b.WithProfile(tenantID, models.PropDefaultSchema, schema)
	}
	return b
}

// Build returns a copy of the property set.
func (b *PropertiesBuilder) Build() map[string]string {
	return maps.Clone(b.props)
}
