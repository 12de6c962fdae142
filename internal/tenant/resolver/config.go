package resolver

import "net/http"

// Config holds the resolution rules. Zero rule fields and statuses take the
// DefaultConfig values; the static lists are used as given.
type Config struct {
	HeaderName      string
	ParamName       string
	BearerClaim     string
	WellKnownMarker string
	PrefixMarker    string

	// TenantAwareEndpoints are second segments that mark the first segment as a tenant.
	TenantAwareEndpoints []string
	// ReservedSegments are never taken as a tenant from the path. Endpoint names are added.
	ReservedSegments []string

	StaticPrefixes []string
	StaticPaths    []string

	NotFoundStatus int
	InvalidStatus  int
}

// DefaultConfig returns the standard rule set.
func DefaultConfig() Config {
	return Config{
		HeaderName:      "tenantId",
		ParamName:       "tenant",
		BearerClaim:     "tenantId",
		WellKnownMarker: "/.well-known/openid-configuration",
		PrefixMarker:    "tenants",
		TenantAwareEndpoints: []string{
			"oauth2", "login", "revoke", "recovery", ".well-known",
			"jwks", "userinfo", "authorize", "token", "introspect",
		},
		ReservedSegments: []string{
			"api", "v1", "v2", "public", "health", "actuator", "admin", "management", "tenants",
		},
		StaticPrefixes: []string{"/css/", "/js/", "/images/", "/webjars/", "/static/", "/assets/"},
		StaticPaths:    []string{"/favicon.ico", "/robots.txt"},
		NotFoundStatus: http.StatusBadRequest,
		InvalidStatus:  http.StatusBadRequest,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeaderName == "" {
		c.HeaderName = d.HeaderName
	}
	if c.ParamName == "" {
		c.ParamName = d.ParamName
	}
	if c.BearerClaim == "" {
		c.BearerClaim = d.BearerClaim
	}
	if c.WellKnownMarker == "" {
		c.WellKnownMarker = d.WellKnownMarker
	}
	if c.PrefixMarker == "" {
		c.PrefixMarker = d.PrefixMarker
	}
	if c.TenantAwareEndpoints == nil {
		c.TenantAwareEndpoints = d.TenantAwareEndpoints
	}
	if c.ReservedSegments == nil {
		c.ReservedSegments = d.ReservedSegments
	}
	if c.NotFoundStatus == 0 {
		c.NotFoundStatus = d.NotFoundStatus
	}
	if c.InvalidStatus == 0 {
		c.InvalidStatus = d.InvalidStatus
	}
	return c
}
