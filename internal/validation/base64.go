package validation

import (
	"encoding/base64"
	"strconv"

	validation "github.com/jellydator/validation"
)

// Base64 validates that a string is valid standard base64-encoded data.
var Base64 = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

// Base64Len validates that a string decodes from base64 to exactly n bytes.
func Base64Len(n int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_base64_type", "must be a string")
		}
		if s == "" {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return validation.NewError("validation_base64", "must be valid base64-encoded data")
		}
		if len(decoded) != n {
			return validation.NewError(
				"validation_base64_length",
				"must decode to "+strconv.Itoa(n)+" bytes",
			)
		}
		return nil
	})
}
