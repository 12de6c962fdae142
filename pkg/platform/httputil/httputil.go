package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "tenantgate/pkg/domain-errors"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Error:       DomainCodeToHTTPCode(domainErr.Code),
			Description: domainErr.Message,
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// WriteErrorWithParams writes a structured error with an explicit status and parameters.
// The tenant resolution filter uses it so each failure key can carry its own status.
func WriteErrorWithParams(w http.ResponseWriter, status int, code dErrors.Code, msg string, params map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Error:       DomainCodeToHTTPCode(code),
		Description: msg,
		Params:      params,
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput,
		dErrors.CodeTenantNotFoundInRequest, dErrors.CodeTenantResolutionFailed:
		return http.StatusBadRequest
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeUnavailable:
		return "service_unavailable"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeTenantNotFoundInRequest, dErrors.CodeTenantResolutionFailed:
		// Resolution keys are part of the public contract and pass through verbatim.
		return string(code)
	default:
		return "internal_error"
	}
}
