package quiz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrValidation             = errors.New("validation failed")
	ErrTransactionFailure     = errors.New("transaction failure")
	ErrConflict               = errors.New("conflict")
)

// ValidationError carries per-field messages. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

func (v *ValidationError) Empty() bool { return v == nil || len(v.Fields) == 0 }

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (v *ValidationError) Is(target error) bool { return target == ErrValidation }

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
