package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tenantgate/pkg/domain-errors"
)

func TestDomainCodeMapping(t *testing.T) {
	tests := []struct {
		code   dErrors.Code
		status int
		wire   string
	}{
		{dErrors.CodeNotFound, http.StatusNotFound, "not_found"},
		{dErrors.CodeBadRequest, http.StatusBadRequest, "bad_request"},
		{dErrors.CodeInvalidInput, http.StatusBadRequest, "bad_request"},
		{dErrors.CodeValidation, http.StatusBadRequest, "validation_error"},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{dErrors.CodeConflict, http.StatusConflict, "conflict"},
		{dErrors.CodeUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{dErrors.CodeInternal, http.StatusInternalServerError, "internal_error"},
		{dErrors.CodeTenantNotFoundInRequest, http.StatusBadRequest, "TENANT_NOT_FOUND_IN_REQUEST"},
		{dErrors.CodeTenantResolutionFailed, http.StatusBadRequest, "TENANT_RESOLUTION_FAILED"},
		{dErrors.Code("something_new"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, DomainCodeToHTTPStatus(tt.code))
			assert.Equal(t, tt.wire, DomainCodeToHTTPCode(tt.code))
		})
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("lookup: %w", dErrors.New(dErrors.CodeNotFound, "tenant umbrella not found"))
		WriteError(w, err)

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "not_found", body.Error)
		assert.Equal(t, "tenant umbrella not found", body.Description)
	})

	t.Run("plain error hides its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("dial tcp 10.0.0.4:5432: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "internal_error", body.Error)
		assert.Empty(t, body.Description)
	})
}

func TestWriteErrorWithParams(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorWithParams(w, http.StatusNotFound, dErrors.CodeTenantResolutionFailed,
		"tenant not configured", map[string]string{"tenant": "umbrella"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "TENANT_RESOLUTION_FAILED", body.Error)
	assert.Equal(t, map[string]string{"tenant": "umbrella"}, body.Params)
}
