package opc

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-opc/protocol"
)

// ErrNotImplemented is returned by the write operations that the devices
// document but this driver does not perform. No bytes are sent.
var ErrNotImplemented = errors.New("operation not implemented")

// ErrDisconnected is returned by operations on a closed session.
var ErrDisconnected = errors.New("session is disconnected")

// TransportPreconditionError indicates that the connection cannot drive an
// OPC, e.g. it is nil or in the wrong SPI mode.
type TransportPreconditionError struct {
	Reason string
}

func (e *TransportPreconditionError) Error() string {
	return fmt.Sprintf("transport precondition failed: %s", e.Reason)
}

// HandshakeTimeoutError indicates that the device never reported ready
// within the retry budget. The session remains usable.
type HandshakeTimeoutError struct {
	Command  byte
	Attempts int
	Last     byte
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("device not ready: command 0x%02X failed after %d attempts (last response 0x%02X)",
		e.Command, e.Attempts, e.Last)
}

// IsHandshakeTimeout returns true if the error is a HandshakeTimeoutError.
func IsHandshakeTimeout(err error) bool {
	var he *HandshakeTimeoutError
	return errors.As(err, &he)
}

// ValidationError indicates a caller-supplied parameter outside its
// contract. It is returned before any bus traffic.
type ValidationError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
}

// UnsupportedOperationError indicates an operation the device variant does
// not have.
type UnsupportedOperationError struct {
	Model     protocol.Model
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported by the OPC-%s", e.Operation, e.Model)
}
