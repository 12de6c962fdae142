package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tenantgate/pkg/domain-errors"
)

type poolSettings struct {
	URL    string `validate:"required"`
	Min    int    `validate:"min=0"`
	Max    int    `validate:"gtefield=Min"`
	Schema string `validate:"omitempty,schemaname"`
}

func TestValidate(t *testing.T) {
	t.Run("accepts valid struct", func(t *testing.T) {
		require.NoError(t, Validate(poolSettings{URL: "postgres://db/acme", Min: 1, Max: 4, Schema: "acme"}))
	})

	t.Run("missing url is a validation error", func(t *testing.T) {
		err := Validate(poolSettings{Max: 1})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "url is required", err.Error())
	})

	t.Run("max below min", func(t *testing.T) {
		err := Validate(poolSettings{URL: "x", Min: 5, Max: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max must not be less than min")
	})

	t.Run("schema injection rejected", func(t *testing.T) {
		err := Validate(poolSettings{URL: "x", Schema: `acme"; DROP SCHEMA public; --`})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema must be a plain identifier")
	})
}

func TestIsSchemaName(t *testing.T) {
	assert.True(t, IsSchemaName("tenant_acme"))
	assert.True(t, IsSchemaName("_private1"))
	assert.False(t, IsSchemaName(""))
	assert.False(t, IsSchemaName("1acme"))
	assert.False(t, IsSchemaName("acme-corp"))
	assert.False(t, IsSchemaName("a.b"))
}
