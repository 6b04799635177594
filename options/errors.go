package options

import (
	"errors"
	"fmt"
)

// ErrInvalidArguments matches any [InvalidArgumentsError] via errors.Is.
var ErrInvalidArguments = errors.New("invalid arguments")

// InvalidArgumentsError is returned when a connect call does not match one of
// the supported call shapes, or when a URL argument cannot be parsed.
type InvalidArgumentsError struct {
	// Shape describes the rejected call, e.g. "connect(string, int)".
	Shape string

	// Reason is the human-readable cause.
	Reason string

	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *InvalidArgumentsError) Error() string {
	msg := "invalid arguments: " + e.Shape
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying parse error.
func (e *InvalidArgumentsError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrInvalidArguments].
func (e *InvalidArgumentsError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// IsInvalidArguments returns true if err is an [InvalidArgumentsError].
func IsInvalidArguments(err error) bool {
	var e *InvalidArgumentsError
	return errors.As(err, &e)
}

func invalidShape(shape, format string, args ...any) *InvalidArgumentsError {
	return &InvalidArgumentsError{Shape: shape, Reason: fmt.Sprintf(format, args...)}
}
