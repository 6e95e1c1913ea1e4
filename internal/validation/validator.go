// Package validation checks request DTO shape before a request
// reaches the store; semantic per-field constraints on entity content
// are internal/refinement's job, not this package's.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arcs-project/arcs-core/internal/dto"
)

// Validator wraps a go-playground validator instance with the extra
// tags Arcs requests need.
type Validator struct {
	validator *validator.Validate
}

// NewValidator constructs a Validator with Arcs' custom tags
// registered.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("datetime", validateDateTime)
	v.RegisterValidation("uuid", validateUUID)
	v.RegisterValidation("alphanum_underscore", validateAlphanumUnderscore)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// ValidateStruct validates s against its `validate` tags, returning a
// *ValidationError wrapping every field failure.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var errs []dto.ValidationError
	for _, fe := range validationErrs {
		errs = append(errs, dto.ValidationError{
			Field:   fe.Field(),
			Message: describeTag(fe),
			Value:   fe.Value(),
		})
	}

	return &ValidationError{Errors: errs}
}

// ValidateVar validates a single value against a validator tag
// expression.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validator.Var(field, tag)
}

// ValidationError collects every field-level failure from one
// ValidateStruct call.
type ValidationError struct {
	Errors []dto.ValidationError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, ", "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("minimum is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum is %s", fe.Param())
	case "uuid":
		return "invalid uuid format"
	case "datetime":
		return "invalid datetime format"
	case "dive":
		return "one or more elements failed validation"
	case "alphanum_underscore":
		return "only letters, digits and underscore are allowed"
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}

func validateDateTime(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	formats := []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", "2006-01-02"}
	for _, format := range formats {
		if _, err := time.Parse(format, value); err == nil {
			return true
		}
	}
	return false
}

func validateUUID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if len(value) != 36 {
		return false
	}
	return value[8] == '-' && value[13] == '-' && value[18] == '-' && value[23] == '-'
}

func validateAlphanumUnderscore(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, char := range value {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '_') {
			return false
		}
	}
	return true
}
