package errors

import (
	"errors"
	"fmt"
)

// Common error types for the shop client
var (
	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")

	// Token errors
	ErrMissingToken = errors.New("missing token in response")

	// Storage errors
	ErrStoreSealed  = errors.New("token store is sealed with a different key")
	ErrStoreCorrupt = errors.New("token store is corrupt")
	ErrStoreBackend = errors.New("unknown token store backend")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrPageOutOfRange = errors.New("page out of range")
	ErrNotFound       = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
