package services

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to the API layer. Channel send failures never reach
// callers; they are absorbed into dispatch log rows by the scheduler.
var (
	// ErrValidation marks malformed or missing required input, e.g. a missing required photo.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks a referenced template/project/day that is not configured.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks an absent referenced record.
	ErrNotFound = errors.New("not found")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func configurationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
