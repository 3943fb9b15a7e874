package opc

import "time"

// Frame is one completed bus transaction, handed to the Tracer after the
// session finishes an operation.
type Frame struct {
	// Time is when the transaction completed
	Time time.Time `json:"time" cbor:"time"`

	// Model is the device variant, e.g. "N2"
	Model string `json:"model" cbor:"model"`

	// Operation names the logical operation, e.g. "histogram"
	Operation string `json:"op" cbor:"op"`

	// Sent holds every byte clocked out, handshake included
	Sent []byte `json:"sent" cbor:"sent"`

	// Received holds every byte clocked in
	Received []byte `json:"received" cbor:"received"`

	// Err is the failure message, empty on success
	Err string `json:"err,omitempty" cbor:"err,omitempty"`
}

// Tracer is called after every operation that touched the bus.
// Implementations should return quickly; the bus is idle while it runs.
//
// Example:
//
//	rec, _ := trace.Create("frames.cbor")
//	sess, err := opc.New(conn, protocol.ModelN2, opc.WithTracer(rec.Record))
type Tracer func(Frame)

// Logger is an optional logging interface that can be provided to the session.
// *slog.Logger satisfies it directly.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	sess, err := opc.New(conn, protocol.ModelN3, opc.WithLogger(logger))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a warning with optional key-value pairs
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
