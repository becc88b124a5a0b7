// Package validation provides custom validation rules for request DTOs.
package validation

import (
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/cryptoshred/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank rejects strings made only of whitespace.
var NotBlank = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_not_blank_type", "must be a string")
	}
	if s != "" && strings.TrimSpace(s) == "" {
		return validation.NewError("validation_not_blank", "must not be blank")
	}
	return nil
})

// UUID validates that a string is a canonical UUID.
var UUID = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_uuid_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
})
