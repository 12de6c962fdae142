package handler

import (
	dErrors "tenantgate/pkg/domain-errors"
	strutil "tenantgate/pkg/platform/strings"
	"tenantgate/pkg/platform/validation"
)

// RefreshRequest optionally names keys to treat as changed even when the
// file is unchanged, e.g. to force a pool rebuild.
type RefreshRequest struct {
	Keys []string `json:"keys"`
}

func (r *RefreshRequest) Normalize() {
	if r == nil {
		return
	}
	r.Keys = strutil.DedupeAndTrim(r.Keys)
}

func (r *RefreshRequest) Validate() error {
	if r == nil {
		return nil
	}
	if err := validation.MaxCount("refresh keys", len(r.Keys), validation.MaxRefreshKeys); err != nil {
		return err
	}
	return validation.EachMaxLength("keys", r.Keys, validation.MaxPropertyKeyLength)
}

// AuditQuery is the parsed query of GET /admin/cleanup/audits.
type AuditQuery struct {
	TenantID string
	Limit    int
}

func (q *AuditQuery) Validate() error {
	if q.TenantID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "tenant is required")
	}
	if err := validation.MaxLength("tenant", q.TenantID, validation.MaxTenantIDLength); err != nil {
		return err
	}
	return validation.InRange("limit", q.Limit, 1, validation.MaxAuditLimit)
}
