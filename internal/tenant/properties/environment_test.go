package properties

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentLookupOrder(t *testing.T) {
	env := NewEnvironment(map[string]string{"tenant-profile.acme.url": "postgres://base"})
	env.SetOverlay(map[string]string{
		"tenant-profile.acme.url":      "postgres://overlay",
		"tenant-profile.acme.username": "generated",
	})

	v, ok := env.Get("tenant-profile.acme.url")
	require.True(t, ok)
	assert.Equal(t, "postgres://base", v, "base wins over overlay")

	v, ok = env.Get("tenant-profile.acme.username")
	require.True(t, ok)
	assert.Equal(t, "generated", v)

	assert.True(t, env.HasBase("tenant-profile.acme.url"))
	assert.False(t, env.HasBase("tenant-profile.acme.username"))
	assert.Equal(t, []string{"tenant-profile.acme.url", "tenant-profile.acme.username"}, env.Keys())
}

func TestEnvironmentKeysAreCaseSensitive(t *testing.T) {
	env := NewEnvironment(map[string]string{"tenant-profile.Acme.url": "x"})

	_, ok := env.Get("tenant-profile.acme.url")
	assert.False(t, ok)
}

func TestEnvironmentTypedGetters(t *testing.T) {
	env := NewEnvironment(map[string]string{
		"flag":    " true ",
		"bad":     "maybe",
		"size":    "12",
		"ms":      "2500",
		"dur":     "1m30s",
		"blank":   "  ",
		"trimmed": "  acme ",
	})

	assert.True(t, env.Bool("flag", false))
	assert.True(t, env.Bool("bad", true))
	assert.False(t, env.Bool("missing", false))
	assert.Equal(t, 12, env.Int("size", 0))
	assert.Equal(t, 7, env.Int("bad", 7))
	assert.Equal(t, 2500*time.Millisecond, env.Duration("ms", 0))
	assert.Equal(t, 90*time.Second, env.Duration("dur", 0))
	assert.Equal(t, time.Second, env.Duration("bad", time.Second))
	assert.Equal(t, "fallback", env.String("blank", "fallback"))
	assert.Equal(t, "acme", env.String("trimmed", ""))
}

func TestReplaceBaseReturnsChangedKeys(t *testing.T) {
	env := NewEnvironment(map[string]string{
		"tenant.ids":                 "A,B",
		"tenant-profile.A.url":       "postgres://a",
		"tenant-profile.B.url":       "postgres://b",
		"tenant.multitenant.enabled": "true",
	})

	changed := env.ReplaceBase(map[string]string{
		"tenant.ids":                 "A,C",
		"tenant-profile.A.url":       "postgres://a",
		"tenant-profile.C.url":       "postgres://c",
		"tenant.multitenant.enabled": "true",
	})

	assert.Equal(t, []string{"tenant-profile.B.url", "tenant-profile.C.url", "tenant.ids"}, changed)
	assert.Empty(t, env.ReplaceBase(env.Base()))
}

func TestSetOverlayIsWholesale(t *testing.T) {
	env := NewEnvironment(nil)
	env.SetOverlay(map[string]string{"tenant-profile.B.url": "x"})
	env.SetOverlay(map[string]string{"tenant-profile.C.url": "y"})

	_, ok := env.Get("tenant-profile.B.url")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"tenant-profile.C.url": "y"}, env.Overlay())
}

func TestEnvironmentConcurrentAccess(t *testing.T) {
	env := NewEnvironment(map[string]string{"k": "0"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			env.ReplaceBase(map[string]string{"k": "1"})
			env.SetOverlay(map[string]string{"o": "1"})
		}()
		go func() {
			defer wg.Done()
			_ = env.Keys()
			_, _ = env.Get("k")
		}()
	}
	wg.Wait()
	assert.Equal(t, "1", env.String("k", ""))
}

func TestParseFlattensNestedYAML(t *testing.T) {
	props, err := Parse([]byte(`
tenant:
  multitenant:
    enabled: true
  default: acme
  ids: acme,Globex
tenant-profile:
  default:
    max-pool-size: 20
    driver: pgx
  Globex:
    url: postgres://globex
    schemas: [one, two]
tenant-profile.acme.url: postgres://acme
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"tenant.multitenant.enabled":           "true",
		"tenant.default":                       "acme",
		"tenant.ids":                           "acme,Globex",
		"tenant-profile.default.max-pool-size": "20",
		"tenant-profile.default.driver":        "pgx",
		"tenant-profile.Globex.url":            "postgres://globex",
		"tenant-profile.Globex.schemas":        "one,two",
		"tenant-profile.acme.url":              "postgres://acme",
	}, props)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("tenant: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant:\n  ids: acme\n"), 0o600))

	props, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", props["tenant.ids"])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
