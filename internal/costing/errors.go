package costing

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError reports an input the caller must fix. It is never retried.
type ValidationError struct {
	Field string
	Value any
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Msg, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a validation error for field.
func Invalid(field string, value any, msg string) error {
	return &ValidationError{Field: field, Value: value, Msg: msg}
}
