package model

import (
	"errors"
)

// Error taxonomy shared by the connector, the controllers and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrUnauthorized means the upstream credential is missing or rejected.
	// It is fatal to the session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the referenced chat does not exist upstream.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest means the request was rejected before or by the upstream.
	ErrBadRequest = errors.New("bad request")

	// ErrUpstream means the upstream service or network failed.
	ErrUpstream = errors.New("upstream failure")
)
