package roomloan

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("room loan not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("operation not allowed in current status")
	ErrConflict     = errors.New("room already booked for the requested time")
)

// ValidationError carries per-field failures. It matches ErrInvalidInput
// under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
