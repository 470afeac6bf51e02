package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// Application error codes surfaced by the service.
const (
	CodeInvalidInput      = "invalid_input"
	CodeModelUnavailable  = "model_unavailable"
	CodePersistenceFailed = "persistence_failed"
	CodeUserNotFound      = "user_not_found"
	CodeHistoryNotFound   = "history_not_found"
)

// ErrUserNotFound is returned by stores when the owning user does not exist.
var ErrUserNotFound = errors.New("user does not exist")

// FieldError describes one rejected request field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every rejected field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// FieldErrors extracts per-field detail from an error chain.
func FieldErrors(err error) []FieldError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// ModelUnavailableError reports that the classifier backend failed to
// initialize. The failure is cached until the process restarts.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("classification model unavailable: %v", e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// GenerationError wraps a failed text-generation call. It never leaves
// the guidance generator.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("guidance generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ParseFailure reports a generation response that does not match the
// guidance bundle shape.
type ParseFailure struct {
	Reason string
	Raw    string
}

func (e *ParseFailure) Error() string {
	return "malformed guidance response: " + e.Reason
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
