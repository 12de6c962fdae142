package token

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"tenantgate/internal/tenant/models"
	"tenantgate/internal/tenant/tenantctx"
)

// InMemory keeps tokens per tenant for local runs and tests. Every call is
// scoped to the tenant bound to ctx.
type InMemory struct {
	mu     sync.RWMutex
	tokens map[string]map[string]*models.Token
}

// NewInMemory creates an empty in-memory token store.
func NewInMemory() *InMemory {
	return &InMemory{tokens: make(map[string]map[string]*models.Token)}
}

func tenantOf(ctx context.Context) (string, error) {
	id, ok := tenantctx.FromContext(ctx)
	if !ok {
		return "", tenantctx.ErrNoTenant
	}
	return id, nil
}

// Insert stores a token for the current tenant.
func (s *InMemory) Insert(ctx context.Context, t *models.Token) error {
	if t == nil {
		return fmt.Errorf("token is required")
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[tenantID] == nil {
		s.tokens[tenantID] = make(map[string]*models.Token)
	}
	s.tokens[tenantID][t.ID.String()] = t
	return nil
}

// Count returns the number of the current tenant's tokens.
func (s *InMemory) Count(ctx context.Context) (int64, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tokens[tenantID])), nil
}

// CountOlderThan counts the current tenant's tokens that expired before cutoff.
func (s *InMemory) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.expired(ctx, cutoff)
	return int64(len(ids)), err
}

// FindIDsOlderThan returns up to limit expired token ids, oldest first.
func (s *InMemory) FindIDsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	ids, err := s.expired(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return ids[:min(limit, len(ids))], nil
}

func (s *InMemory) expired(ctx context.Context, cutoff time.Time) ([]string, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Token
	for _, t := range s.tokens[tenantID] {
		if t.ExpiresAt.Before(cutoff) {
			matched = append(matched, t)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Token) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	ids := make([]string, len(matched))
	for i, t := range matched {
		ids[i] = t.ID.String()
	}
	return ids, nil
}

// DeleteByIDs removes the given tokens from the current tenant.
func (s *InMemory) DeleteByIDs(ctx context.Context, ids []string) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.tokens[tenantID], id)
	}
	return nil
}
