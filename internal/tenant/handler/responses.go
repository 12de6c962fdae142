package handler

import (
	"time"

	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/refresh"
)

type RefreshResponse struct {
	ChangedKeys    []string                `json:"changed_keys"`
	Report         datasource.ChangeReport `json:"report"`
	Broadcast      bool                    `json:"broadcast"`
	BroadcastError string                  `json:"broadcast_error,omitempty"`
}

type TenantSummary struct {
	TenantID  string `json:"tenant_id"`
	Installed bool   `json:"installed"`
}

type TenantListResponse struct {
	MultitenancyEnabled bool                 `json:"multitenancy_enabled"`
	DefaultTenant       string               `json:"default_tenant"`
	Tenants             []TenantSummary      `json:"tenants"`
	Datasources         []DatasourceResponse `json:"datasources"`
}

// DatasourceResponse describes an installed pool. Credentials and the
// connection URL are never exposed.
type DatasourceResponse struct {
	TenantID      string    `json:"tenant_id"`
	Driver        string    `json:"driver"`
	DefaultSchema string    `json:"default_schema,omitempty"`
	MinPoolSize   int       `json:"min_pool_size"`
	MaxPoolSize   int       `json:"max_pool_size"`
	InstalledAt   time.Time `json:"installed_at"`
}

type AuditListResponse struct {
	TenantID string                    `json:"tenant_id"`
	Audits   []*models.CleanupJobAudit `json:"audits"`
}

func toRefreshResponse(res refresh.Result) *RefreshResponse {
	keys := res.ChangedKeys
	if keys == nil {
		keys = []string{}
	}
	return &RefreshResponse{ChangedKeys: keys, Report: res.Report}
}

func toDatasourceResponse(e *datasource.Entry) DatasourceResponse {
	return DatasourceResponse{
		TenantID:      e.TenantID,
		Driver:        e.Properties.Driver,
		DefaultSchema: e.Properties.DefaultSchema,
		MinPoolSize:   e.Properties.MinPoolSize,
		MaxPoolSize:   e.Properties.MaxPoolSize,
		InstalledAt:   e.InstalledAt,
	}
}
