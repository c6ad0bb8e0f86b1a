package bookings

import "fmt"

// ValidationError covers malformed or missing input. Not retryable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError covers missing cars, users and bookings.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with ID: %v", e.Resource, e.ID)
}

// ConflictError covers overlapping bookings and wrong-status transitions.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// AuthorizationError covers non-owner and non-admin access, kept distinct
// from ConflictError so clients can render "forbidden" vs "invalid state".
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// PolicyError covers the cancellation lockout window.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}
