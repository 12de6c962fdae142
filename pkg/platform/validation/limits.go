// Package validation holds the size limits admin requests are held to and
// the checks that enforce them. Every failure carries CodeValidation.
package validation

import (
	dErrors "tenantgate/pkg/domain-errors"
)

// MaxBodySize caps admin request bodies at 64 KB.
const MaxBodySize = 64 * 1024

const (
	MaxRefreshKeys       = 200
	MaxPropertyKeyLength = 256
	MaxTenantIDLength    = 128

	DefaultAuditLimit = 20
	MaxAuditLimit     = 500
)

// MaxCount rejects a collection of n items when n exceeds max.
func MaxCount(field string, n, max int) error {
	if n > max {
		return dErrors.Newf(dErrors.CodeValidation, "too many %s: got %d, max %d", field, n, max)
	}
	return nil
}

// MaxLength rejects value when it is longer than max bytes.
func MaxLength(field, value string, max int) error {
	if len(value) > max {
		return dErrors.Newf(dErrors.CodeValidation, "%s longer than %d bytes", field, max)
	}
	return nil
}

// EachMaxLength applies MaxLength to every value and names the first offender by index.
func EachMaxLength(field string, values []string, max int) error {
	for i, v := range values {
		if len(v) > max {
			return dErrors.Newf(dErrors.CodeValidation, "%s[%d] longer than %d bytes", field, i, max)
		}
	}
	return nil
}

// InRange rejects v outside [lo, hi].
func InRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return dErrors.Newf(dErrors.CodeValidation, "%s must be between %d and %d", field, lo, hi)
	}
	return nil
}
