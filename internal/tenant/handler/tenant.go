package handler

import (
	"net/http"

	"tenantgate/internal/tenant/tenantctx"
	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/httputil"
)

// ResolvedTenantResponse echoes what the resolution filter bound.
type ResolvedTenantResponse struct {
	TenantID  string `json:"tenant_id"`
	Path      string `json:"path"`
	Installed bool   `json:"datasource_installed"`
}

// ResolvedTenant serves tenant-aware paths that have no business handler in
// this service. It must be mounted behind the resolution filter; static paths
// the filter lets through unbound are answered with not_found.
func ResolvedTenant(pools PoolDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantctx.FromContext(r.Context())
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "resource not found"))
			return
		}
		_, installed := pools.Get(tenantID)
		httputil.WriteJSON(w, http.StatusOK, ResolvedTenantResponse{
			TenantID:  tenantID,
			Path:      r.URL.Path,
			Installed: installed,
		})
	}
}
