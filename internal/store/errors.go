package store

import "errors"

// Sentinel errors for failures the caller can act on. Handlers map these to
// HTTP status codes with errors.Is; anything else is a storage failure and
// surfaces as a 500.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
)
