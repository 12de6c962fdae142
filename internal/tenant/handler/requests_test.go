package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tenantgate/pkg/domain-errors"
	"tenantgate/pkg/platform/validation"
)

func TestRefreshRequest_Validate_SizeLimits(t *testing.T) {
	t.Run("nil request is an empty refresh", func(t *testing.T) {
		var req *RefreshRequest
		assert.NoError(t, req.Validate())
	})

	t.Run("max keys allowed", func(t *testing.T) {
		req := &RefreshRequest{Keys: make([]string, validation.MaxRefreshKeys)}
		assert.NoError(t, req.Validate())
	})

	t.Run("too many keys rejected", func(t *testing.T) {
		req := &RefreshRequest{Keys: make([]string, validation.MaxRefreshKeys+1)}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "too many refresh keys")
	})

	t.Run("oversized key rejected", func(t *testing.T) {
		req := &RefreshRequest{Keys: []string{strings.Repeat("k", validation.MaxPropertyKeyLength+1)}}
		require.Error(t, req.Validate())
	})
}

func TestRefreshRequest_Normalize(t *testing.T) {
	req := &RefreshRequest{Keys: []string{" tenant.ids", "tenant.ids", "", "tenant.default "}}
	req.Normalize()
	assert.Equal(t, []string{"tenant.ids", "tenant.default"}, req.Keys)
}

func TestAuditQuery_Validate(t *testing.T) {
	assert.NoError(t, (&AuditQuery{TenantID: "acme", Limit: 1}).Validate())
	assert.True(t, dErrors.HasCode((&AuditQuery{Limit: 1}).Validate(), dErrors.CodeBadRequest))
	assert.True(t, dErrors.HasCode((&AuditQuery{TenantID: "acme", Limit: 0}).Validate(), dErrors.CodeValidation))
	assert.Error(t, (&AuditQuery{TenantID: strings.Repeat("a", validation.MaxTenantIDLength+1), Limit: 1}).Validate())
}
