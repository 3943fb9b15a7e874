package opc

import (
	"time"

	"github.com/moffa90/go-opc/protocol"
)

const (
	// DefaultRetries bounds firmware detection and the ready handshake
	DefaultRetries = 5

	// DefaultRetryInterval is the pause between firmware detection attempts
	DefaultRetryInterval = time.Second

	// DefaultWaitInterval is the pause between histogram polls in Wait
	DefaultWaitInterval = 200 * time.Millisecond
)

// Config holds the session configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// Clock supplies the protocol delays
	Clock Clock

	// Tracer receives every completed transaction (optional)
	Tracer Tracer

	// Firmware, when set, skips detection
	Firmware *protocol.FirmwareVersion

	// Retries is the attempt budget for firmware detection and handshakes
	Retries int

	// RetryInterval overrides both the detection interval and the model's
	// handshake poll interval when non-zero
	RetryInterval time.Duration

	// DetectFirmware reads the info string at construction
	DetectFirmware bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Clock:          RealClock{},
		Retries:        DefaultRetries,
		DetectFirmware: true,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithLogger sets a logger for session operations.
//
// Example:
//
//	sess, err := opc.New(conn, protocol.ModelN2, opc.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClock replaces the clock used for protocol delays.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithTracer installs a callback that receives the raw bytes of every
// transaction.
func WithTracer(t Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithFirmware sets the firmware version explicitly. The session starts
// ready and no detection traffic is sent.
//
// Example:
//
//	sess, err := opc.New(conn, protocol.ModelN2, opc.WithFirmware(18, 2))
func WithFirmware(major, minor int) Option {
	return func(c *Config) {
		c.Firmware = &protocol.FirmwareVersion{Major: major, Minor: minor}
	}
}

// WithRetries sets the attempt budget for firmware detection and the ready
// handshake. Values below 1 are ignored.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 1 {
			c.Retries = retries
		}
	}
}

// WithRetryInterval sets the pause between detection attempts and between
// handshake polls.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.RetryInterval = d
		}
	}
}

// WithDetectFirmware enables or disables firmware detection in New.
// Default is true.
func WithDetectFirmware(detect bool) Option {
	return func(c *Config) {
		c.DetectFirmware = detect
	}
}
