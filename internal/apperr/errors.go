// Package apperr defines the error taxonomy shared by the dateloop domain modules.
//
// Callers classify failures with errors.Is against the sentinels below; the
// HTTP layer maps each class to a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRequest indicates an active friend request already links the pair.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrAlreadyResolved indicates a request or invitation has left its pending state.
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrForbidden indicates the actor is not allowed to perform the transition.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a write collided with a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrTransient indicates the backend could not be reached or failed mid-request.
	ErrTransient = errors.New("backend unavailable")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Transient marks err as a backend failure that is safe to surface as retryable.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsTransient reports whether err stems from a backend outage.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Field
	}
	return ""
}
