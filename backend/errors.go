package backend

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnsupportedProtocol matches any [UnsupportedProtocolError].
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrInvalidOptions matches any [OptionsError].
	ErrInvalidOptions = errors.New("invalid connection options")
)

// UnsupportedProtocolError is returned when the resolved protocol is not one
// of the dispatcher's cases. It is not retryable: the caller must supply a
// supported protocol.
type UnsupportedProtocolError struct {
	Protocol string
}

// Error implements the error interface.
func (e *UnsupportedProtocolError) Error() string {
	return "invalid protocol: " + e.Protocol
}

// Is reports whether target is [ErrUnsupportedProtocol].
func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == ErrUnsupportedProtocol
}

// IsUnsupportedProtocol returns true if err is an [UnsupportedProtocolError].
func IsUnsupportedProtocol(err error) bool {
	var e *UnsupportedProtocolError
	return errors.As(err, &e)
}

// OptionsError is returned when resolved options lack a field the selected
// transport requires.
type OptionsError struct {
	// Protocol is the protocol whose requirements were not met.
	Protocol string

	// Fields lists the offending option names.
	Fields []string

	// Err is the underlying validation error.
	Err error
}

// Error implements the error interface.
func (e *OptionsError) Error() string {
	return "invalid options for " + ProtocolName(e.Protocol) + ": " + strings.Join(e.Fields, ", ")
}

// Unwrap returns the underlying validation error.
func (e *OptionsError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrInvalidOptions].
func (e *OptionsError) Is(target error) bool {
	return target == ErrInvalidOptions
}

func newOptionsError(protocol string, err error) *OptionsError {
	oe := &OptionsError{Protocol: protocol, Err: err}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			oe.Fields = append(oe.Fields, fe.Field()+" ("+fe.Tag()+")")
		}
	} else {
		oe.Fields = []string{err.Error()}
	}
	return oe
}
