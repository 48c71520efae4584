package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the client packages.
var (
	// Flow errors
	ErrValidation      = errors.New("validation failed")
	ErrRequestInFlight = errors.New("request already in flight")
	ErrInvalidStep     = errors.New("operation not valid for current step")
	ErrIncompleteLogin = errors.New("login accepted without user or tokens")

	// Credential errors
	ErrNoToken       = errors.New("no token stored")
	ErrStoreCorrupt  = errors.New("credential store corrupt")
	ErrMissingConfig = errors.New("missing configuration")
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
