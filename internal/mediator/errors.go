package mediator

import (
	"errors"
	"fmt"
)

// permanentError marks a failure that retrying cannot fix: malformed payloads,
// unroutable events, unsupported operations. The drain worker moves such
// events straight to FAILED. Everything else (collaborator timeouts,
// unavailability) is treated as transient and retried up to the attempt limit.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps an error so the drain worker fails the event without retry
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Permanentf is Permanent over a formatted error
func Permanentf(format string, args ...interface{}) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err carries a permanent failure
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
