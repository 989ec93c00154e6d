// Package common contains shared constants and sentinel errors used across
// ZoneUp components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Service-level errors mapped onto client-facing status categories
	// by the outermost boundary.
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
	ErrInternal   = errors.New("internal error")

	// Auth/token errors. A consumed token and a token that never existed
	// are indistinguishable to the caller.
	ErrInvalidToken = errors.New("invalid token")
)
