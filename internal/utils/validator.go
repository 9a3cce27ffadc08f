// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("bps", validateBasisPoints)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Basis points fields must stay within one whole unit (0-10000).
func validateBasisPoints(fl validator.FieldLevel) bool {
	bps := fl.Field().Int()
	return bps >= 0 && bps <= 10000
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "bps":
		return e.Field() + " must be between 0 and 10000 basis points"
	default:
		return e.Field() + " is invalid"
	}
}
