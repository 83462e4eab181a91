package shared

import "errors"

var (
	// ErrValidation indicates malformed or out-of-policy input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an account with the same username and email already exists.
	ErrConflict = errors.New("account already exists")
	// ErrUsernameTaken indicates another user already holds the requested username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUnauthorized indicates a bad password or an invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller is acting on a record it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates no such user, or a queue that never yielded.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates a downstream collaborator failed.
	ErrUnavailable = errors.New("service unavailable")
)
