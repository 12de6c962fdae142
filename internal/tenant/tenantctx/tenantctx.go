// Package tenantctx binds the current tenant to a unit of work.
//
// The tenant travels on context.Context. A binding ends when the derived
// context goes out of scope, so nothing leaks between requests or jobs that
// share a goroutine.
package tenantctx

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"tenantgate/pkg/requestcontext"
)

// ErrNoTenant is returned when binding an empty tenant ID.
var ErrNoTenant = errors.New("tenant id must not be empty")

var active atomic.Int64

// WithTenant returns a context bound to tenantID.
func WithTenant(ctx context.Context, tenantID string) (context.Context, error) {
	if strings.TrimSpace(tenantID) == "" {
		return ctx, ErrNoTenant
	}
	return requestcontext.WithTenantID(ctx, tenantID), nil
}

// FromContext returns the bound tenant ID.
func FromContext(ctx context.Context) (string, bool) {
	id := requestcontext.TenantID(ctx)
	return id, id != ""
}

// Run binds tenantID for the duration of fn. The scope is released on every
// exit path; a panic in fn propagates after release.
func Run(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	bound, err := WithTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	active.Add(1)
	defer active.Add(-1)
	return fn(bound)
}

// Active reports how many Run scopes are currently open.
func Active() int64 {
	return active.Load()
}
