package models

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProfileKey(t *testing.T) {
	tests := []struct {
		key      string
		tenantID string
		property string
		ok       bool
	}{
		{key: "tenant-profile.acme.url", tenantID: "acme", property: "url", ok: true},
		{key: "tenant-profile.Acme.max-pool-size", tenantID: "Acme", property: "max-pool-size", ok: true},
		{key: "tenant-profile.eu.acme.url", tenantID: "eu.acme", property: "url", ok: true},
		{key: "tenant-profile.acme", ok: false},
		{key: "tenant-profile.acme.", ok: false},
		{key: "tenant.ids", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, prop, ok := ParseProfileKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tenantID, id)
			assert.Equal(t, tt.property, prop)
		})
	}
}

func TestProfileKeyRoundTrip(t *testing.T) {
	id, prop, ok := ParseProfileKey(ProfileKey("globex", PropDefaultSchema))
	assert.True(t, ok)
	assert.Equal(t, "globex", id)
	assert.Equal(t, PropDefaultSchema, prop)
}

func TestIsDatabaseProperty(t *testing.T) {
	assert.True(t, IsDatabaseProperty(PropURL))
	assert.True(t, IsDatabaseProperty(PropStatementCacheCapacity))
	assert.False(t, IsDatabaseProperty("feature-flag"))
	assert.False(t, IsDatabaseProperty("login-theme"))
}

func TestDatabasePropertiesLogValueHidesPassword(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("installing", "props", DatabaseProperties{URL: "postgres://db/acme", Username: "acme", Password: "hunter2"})

	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "postgres://db/acme")
	assert.Contains(t, buf.String(), `"schema":"public"`)
}
