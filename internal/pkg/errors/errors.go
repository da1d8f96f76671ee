package errors

import "errors"

// Application-wide error kinds. Flow-specific sentinels (OTP, device trust)
// live in the service package; handlers translate both families into HTTP
// status codes and stable error_type strings.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for failed authentication (bad credentials, bad token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken is returned when a session token has expired.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict is returned for state conflicts (e.g. a raced consume of the same code).
	ErrConflict = errors.New("resource state conflict")
)
