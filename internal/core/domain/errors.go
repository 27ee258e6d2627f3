package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoCompletedIndex indicates a project has no completed index to
	// retrieve against. This is a precondition failure, distinct from an
	// empty (but valid) result set.
	ErrNoCompletedIndex = errors.New("no completed index for project")

	// ErrIndexStatusTransition indicates an illegal index status change
	ErrIndexStatusTransition = errors.New("illegal index status transition")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
