package domain

import "errors"

// Wire error codes sent back to the originating connection.
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// ValidationError reports malformed, missing or oversized input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError creates a ValidationError.
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// AuthorizationError reports an actor acting on a resource it does not own.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// NotFoundError reports a referenced channel or message that does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NewNotFoundError creates a NotFoundError for the named resource.
func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// AuthenticationError reports a bad or missing credential at connect time.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string { return e.Reason }

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// CodeForError maps an error to its wire error code.
func CodeForError(err error) string {
	var (
		ve *ValidationError
		ae *AuthorizationError
		ne *NotFoundError
		ue *AuthenticationError
	)
	switch {
	case errors.As(err, &ve):
		return ErrCodeBadRequest
	case errors.As(err, &ae):
		return ErrCodeForbidden
	case errors.As(err, &ne):
		return ErrCodeNotFound
	case errors.As(err, &ue):
		return ErrCodeUnauthenticated
	default:
		return ErrCodeInternalError
	}
}
