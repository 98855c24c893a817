// Package common defines shared constants, sentinel errors and small helpers
// used across client and server layers of memorelay. Callers should use
// errors.Is to match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrCollision  = errors.New("id collision")

	// Client-level errors.
	ErrorUnavailable     = errors.New("service unavailable")
	ErrTooManyCollisions = errors.New("too many id collisions")
)
