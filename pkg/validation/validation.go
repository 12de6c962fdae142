package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "tenantgate/pkg/domain-errors"
	s "tenantgate/pkg/platform/strings"
)

// schemaNamePattern accepts unquoted PostgreSQL identifiers only.
var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("schemaname", func(fl validator.FieldLevel) bool {
		return IsSchemaName(fl.Field().String())
	})
	return v
}

// IsSchemaName reports whether name is safe to interpolate as a schema identifier.
func IsSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// Validate validates a struct using the default validator and returns a domain error
func Validate(v any) error {
	if err := defaultValidator.Struct(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a human-readable message
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid value"
	}

	fe := validationErrs[0]
	fieldName := fe.Field()
	if fieldName == "" {
		fieldName = fe.StructField()
	}
	field := s.ToSnakeCase(fieldName)

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, s.ToSnakeCase(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "schemaname":
		return fmt.Sprintf("%s must be a plain identifier", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
