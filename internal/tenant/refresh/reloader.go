// Package refresh reloads the tenant property file and turns the difference
// into a change notification, triggered by an admin call, a file watcher or a
// broadcast from another node.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"tenantgate/internal/tenant/datasource"
	"tenantgate/internal/tenant/metrics"
	"tenantgate/internal/tenant/properties"
)

// Trigger labels what started a reload.
type Trigger string

const (
	TriggerAdmin   Trigger = "admin"
	TriggerWatcher Trigger = "watcher"
	TriggerBus     Trigger = "bus"
)

// ChangeHandler applies a set of changed property keys.
type ChangeHandler interface {
	HandleChange(ctx context.Context, keys []string) datasource.ChangeReport
}

// Loader reads the current property set.
type Loader func() (map[string]string, error)

// FileLoader loads the YAML property file at path.
func FileLoader(path string) Loader {
	return func() (map[string]string, error) {
		return properties.LoadFile(path)
	}
}

// Result describes one reload.
type Result struct {
	ChangedKeys []string                `json:"changed_keys"`
	Report      datasource.ChangeReport `json:"report"`
}

// Reloader swaps the base property layer and notifies the change handler.
// Reloads are serialized.
type Reloader struct {
	mu      sync.Mutex
	env     *properties.Environment
	load    Loader
	handler ChangeHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics counts reloads per trigger.
func WithMetrics(m *metrics.Metrics) ReloaderOption {
	return func(r *Reloader) {
		r.metrics = m
	}
}

// NewReloader returns a Reloader over env.
func NewReloader(env *properties.Environment, load Loader, handler ChangeHandler, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		env:     env,
		load:    load,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload reads the property source, replaces the base layer and dispatches
// the changed keys, unioned with extraKeys, to the change handler. A load
// failure leaves the current properties in place. When no key changed the
// handler is not called.
func (r *Reloader) Reload(ctx context.Context, trigger Trigger, extraKeys ...string) (res Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.metrics.IncRefresh(string(trigger), err) }()

	next, err := r.load()
	if err != nil {
		r.logger.ErrorContext(ctx, "tenant_properties_reload_failed", "trigger", trigger, "error", err)
		return Result{}, fmt.Errorf("reload properties: %w", err)
	}

	keys := union(r.env.ReplaceBase(next), extraKeys)
	res.ChangedKeys = keys
	if len(keys) == 0 {
		r.logger.DebugContext(ctx, "tenant_properties_unchanged", "trigger", trigger)
		return res, nil
	}

	r.logger.InfoContext(ctx, "tenant_properties_reloaded",
		"trigger", trigger,
		"changed_keys", keys,
	)
	res.Report = r.handler.HandleChange(ctx, keys)
	return res, nil
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	for _, k := range b {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
