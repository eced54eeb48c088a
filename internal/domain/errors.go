package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("room not available")
	ErrLookupFailed = errors.New("lookup failed")
	ErrGateway      = errors.New("payment gateway error")
	ErrUnauthorized = errors.New("not authorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrBadSignature = errors.New("invalid webhook signature")
)

// ValidationError collects per-field input problems.
type ValidationError struct {
	fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{fields: make(map[string][]string)}
}

func (v *ValidationError) Add(field, msg string) {
	v.fields[field] = append(v.fields[field], msg)
}

func (v *ValidationError) Fields() map[string][]string { return v.fields }

func (v *ValidationError) Empty() bool { return len(v.fields) == 0 }

// OrNil returns v when it holds at least one problem.
func (v *ValidationError) OrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.fields[k], ", ")))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// AsValidationError returns the ValidationError wrapped in err, if any.
func AsValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
