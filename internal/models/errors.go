package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph lookups.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrUnreachable  = errors.New("no path between addresses")
)

// Sentinel errors returned by transaction sources. ErrAddressNotFound is a dead
// end rather than a failure; the other two are transient and retried.
var (
	ErrAddressNotFound = errors.New("address has no transfers")
	ErrRateLimited     = errors.New("rate limited by transaction source")
	ErrNetwork         = errors.New("transaction source unreachable")
)

// ErrInvalidInput marks configuration-time errors. It is the only error a search
// returns to its caller.
var ErrInvalidInput = errors.New("invalid input")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%w: %s exceeds maximum length of %d", ErrInvalidInput, field, maxLen)
}

// IsTransient reports whether err is worth retrying against a transaction source.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
