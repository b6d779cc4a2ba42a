package models

import "errors"

// Sentinel errors shared by the persistence boundary implementations.
// Use errors.Is() to check for these in calling code.
var (
	// ErrNotFound indicates the requested chat or message does not exist.
	// For chat loads this is a state-reset signal, not a user-facing failure.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the record exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized indicates no authenticated user could be resolved.
	ErrUnauthorized = errors.New("unauthorized")
)
