package domain

import "strings"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports input that was rejected before any write was attempted.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) == 0 {
			return "validation failed"
		}
		parts := make([]string, 0, len(err.Fields))
		for _, f := range err.Fields {
			parts = append(parts, f.Field+": "+f.Error)
		}
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error {
	return err.Err
}
