package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/tenantctx"
)

// InMemory keeps audit records per tenant.
type InMemory struct {
	mu      sync.RWMutex
	records map[string][]*models.CleanupJobAudit
}

// NewInMemory creates an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string][]*models.CleanupJobAudit)}
}

// Save appends a copy of the record under the current tenant.
func (s *InMemory) Save(ctx context.Context, a *models.CleanupJobAudit) error {
	if a == nil {
		return fmt.Errorf("audit is required")
	}
	tenantID, ok := tenantctx.FromContext(ctx)
	if !ok {
		return tenantctx.ErrNoTenant
	}
	cp := *a
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tenantID] = append(s.records[tenantID], &cp)
	return nil
}

// List returns the current tenant's most recent records, newest first.
func (s *InMemory) List(ctx context.Context, limit int) ([]*models.CleanupJobAudit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	tenantID, ok := tenantctx.FromContext(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.records[tenantID])
	slices.SortStableFunc(out, func(a, b *models.CleanupJobAudit) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out[:min(limit, len(out))], nil
}
