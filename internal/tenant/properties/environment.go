// Package properties holds the layered key/value view the tenant subsystem
// reads its configuration from.
package properties

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment is a concurrency-safe view over two layers: the base layer loaded
// from the property file and a generated overlay. Lookups consult base first.
// Keys are case-sensitive.
type Environment struct {
	mu      sync.RWMutex
	base    map[string]string
	overlay map[string]string
}

// NewEnvironment returns an environment whose base layer is a copy of base.
func NewEnvironment(base map[string]string) *Environment {
	return &Environment{
		base:    maps.Clone(nonNil(base)),
		overlay: map[string]string{},
	}
}

// Get returns the value for key from base, then overlay.
func (e *Environment) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.base[key]; ok {
		return v, true
	}
	v, ok := e.overlay[key]
	return v, ok
}

// String returns the trimmed value for key, or def when absent or blank.
func (e *Environment) String(key, def string) string {
	v, ok := e.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// Bool parses key as a boolean, returning def when absent or unparsable.
func (e *Environment) Bool(key string, def bool) bool {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Int parses key as an integer, returning def when absent or unparsable.
func (e *Environment) Int(key string, def int) int {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Duration parses key as a Go duration ("30s") or as plain milliseconds ("30000").
func (e *Environment) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// ParseDuration accepts a Go duration string or an integer number of milliseconds.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// HasBase reports whether key is set explicitly in the base layer.
func (e *Environment) HasBase(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.base[key]
	return ok
}

// Keys returns the sorted union of keys from both layers.
func (e *Environment) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	set := make(map[string]struct{}, len(e.base)+len(e.overlay))
	for k := range e.base {
		set[k] = struct{}{}
	}
	for k := range e.overlay {
		set[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// BaseKeysWithPrefix returns the sorted base keys starting with prefix.
func (e *Environment) BaseKeysWithPrefix(prefix string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var keys []string
	for k := range e.base {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Base returns a copy of the base layer.
func (e *Environment) Base() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.base)
}

// Overlay returns a copy of the overlay layer.
func (e *Environment) Overlay() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.overlay)
}

// ReplaceBase swaps the base layer and returns the sorted keys that were added,
// removed or modified.
func (e *Environment) ReplaceBase(next map[string]string) []string {
	next = maps.Clone(nonNil(next))
	e.mu.Lock()
	prev := e.base
	e.base = next
	e.mu.Unlock()
	return Diff(prev, next)
}

// SetOverlay replaces the overlay wholesale.
func (e *Environment) SetOverlay(overlay map[string]string) {
	overlay = maps.Clone(nonNil(overlay))
	e.mu.Lock()
	e.overlay = overlay
	e.mu.Unlock()
}

// Diff returns the sorted keys whose presence or value differs between a and b.
func Diff(a, b map[string]string) []string {
	changed := []string{}
	for k, av := range a {
		if bv, ok := b[k]; !ok || bv != av {
			changed = append(changed, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	return changed
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
