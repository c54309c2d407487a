package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a struct based on its validation tags
func ValidateStruct(s interface{}) error {
	return formatValidationError(validate.Struct(s))
}

// Validator is a validator instance carrying custom tags
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator with no custom tags
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// RegisterTag adds a custom tag backed by check
func (v *Validator) RegisterTag(tag string, check func(value string) bool) error {
	return v.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return check(fl.Field().String())
	})
}

// Struct validates s
func (v *Validator) Struct(s interface{}) error {
	return formatValidationError(v.v.Struct(s))
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "invitation_code":
		return fmt.Sprintf("%s is not a valid invitation code", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
