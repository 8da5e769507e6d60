package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrCarUnavailable = errors.New("car is no longer available for the selected dates")

	ErrTransientStore = errors.New("booking store is temporarily unreachable")
)

// ValidationError names the first input field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
