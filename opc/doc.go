// Package opc provides a session API for Alphasense OPC-N1, OPC-N2 and
// OPC-N3 optical particle counters.
//
// # Overview
//
// A Session runs one protocol operation at a time over an SPI connection:
//   - Waiting for the device to report ready (OPC-N3 handshake)
//   - Sending the command byte(s) with the device's timing
//   - Clocking in the fixed-length response frame
//   - Decoding it with the protocol package into a typed reading
//
// # Basic Usage
//
//	// User provides the bus (see transport/periphspi, transport/usbiss)
//	conn, err := periphspi.Open("/dev/spidev0.0", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := opc.New(conn, protocol.ModelN2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := sess.On(); err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := sess.ReadHistogram(true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(h.Bins, h.PM25)
//
// # Firmware
//
// The firmware version selects the histogram layout and gates some
// operations. It is detected from the information string when the session
// is created, or given explicitly:
//
//	sess, err := opc.New(conn, protocol.ModelN2, opc.WithFirmware(18, 2))
//
// If detection fails the session is still returned, in the
// StateFirmwareUnknown state. Gated operations such as ReadConfig2 then
// return a *protocol.FirmwareVersionError until DetectFirmware succeeds.
//
// # Configuration Options
//
//	sess, err := opc.New(conn, protocol.ModelN3,
//	    opc.WithLogger(slog.Default()),
//	    opc.WithRetries(10),
//	    opc.WithRetryInterval(2*time.Second),
//	    opc.WithTracer(frames.Record),
//	)
//
// # Error Handling
//
// The package provides structured error types:
//   - TransportPreconditionError: nil connection or wrong SPI mode (New only)
//   - HandshakeTimeoutError: the device never reported ready
//   - ValidationError: a parameter was rejected before any bus traffic
//   - UnsupportedOperationError: the model has no such operation
//   - protocol.IntegrityError: histogram checksum mismatch
//   - protocol.FirmwareVersionError: firmware gate or failed detection
//   - ErrNotImplemented: write placeholders, which send nothing
//
// Only New fails permanently; after any other error the session can be
// used again.
//
// # Timing
//
// All protocol delays go through a Clock. Tests pass a MockClock, which
// records the requested delays instead of sleeping.
package opc
