package client

import (
	"http-keepalive/transport"

	"github.com/pkg/errors"
)

var (
	// ErrStateViolation is wrapped by every error caused by calling a method in a wrong state.
	ErrStateViolation = errors.New("connection state violation")

	ErrResponsePending   = errors.Wrap(ErrStateViolation, "previous response is not read yet")
	ErrRequestPending    = errors.Wrap(ErrStateViolation, "request is being sent")
	ErrNoResponsePending = errors.Wrap(ErrStateViolation, "no response is pending")

	ErrConnClosed = errors.New("connection is closed")
)

// TransportError is returned when the underlying transport fails.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Cause() error  { return e.Err }

// Kind classifies the failure. See [transport.KindOf].
func (e *TransportError) Kind() transport.Kind { return transport.KindOf(e.Err) }
