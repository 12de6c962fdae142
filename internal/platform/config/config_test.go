package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "tenantId", cfg.Resolver.HeaderName)
		assert.Equal(t, "tenant", cfg.Resolver.ParamName)
		assert.Contains(t, cfg.Resolver.StaticPrefixes, "/webjars/")
		assert.Equal(t, "0 0 2 * * *", cfg.Cleanup.Schedule)
		assert.Equal(t, 500, cfg.Cleanup.BatchSize)
		assert.Equal(t, 3, cfg.Cleanup.EnumerationAttempts)
		assert.Equal(t, 5*time.Second, cfg.Cleanup.EnumerationBackoff)
		assert.Empty(t, cfg.Redis.URL)
		assert.Equal(t, 10, cfg.Redis.PoolSize)
		assert.Empty(t, cfg.AdminToken)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("CLEANUP_BATCH_SIZE", "100")
		t.Setenv("CLEANUP_RETENTION_DAYS", "7")
		t.Setenv("TENANT_NOT_FOUND_STATUS", "404")
		t.Setenv("TENANT_STATIC_PREFIXES", "/public-assets/")
		t.Setenv("ADMIN_TOKEN", "ops-secret")
		t.Setenv("REDIS_URL", "redis://cache:6379/0")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Cleanup.BatchSize)
		assert.Equal(t, 7, cfg.Cleanup.RetentionDays)
		assert.Equal(t, 404, cfg.Resolver.NotFoundStatus)
		assert.Equal(t, []string{"/public-assets/"}, cfg.Resolver.StaticPrefixes)
		assert.Equal(t, "ops-secret", cfg.AdminToken)
		assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	})

	t.Run("rejects non-positive batch size", func(t *testing.T) {
		t.Setenv("CLEANUP_BATCH_SIZE", "0")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
