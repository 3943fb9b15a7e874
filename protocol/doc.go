// Package protocol implements the Alphasense OPC wire protocol.
//
// The OPC family (N1, N2, N3) speaks a synchronous byte protocol over SPI
// mode 1: the host clocks out a command byte, the device answers with a
// status byte, and the response is clocked in one byte at a time. Frames are
// not length-prefixed; their length is fixed by the model and operation.
//
// # Profiles
//
// Each model is described by a Profile: its command bytes, frame lengths,
// firmware range, histogram bin count and handshake policy.
//
//	p, err := protocol.ProfileFor(protocol.ModelN2)
//	cmd, ok := p.Command(protocol.OpHistogram)
//
// # Decoders
//
// The Decode* functions turn raw frames into typed readings. They perform no
// I/O and never panic on a frame of the documented length; short frames
// return a ShortFrameError.
//
//	h, err := protocol.DecodeHistogram(raw, p, protocol.FirmwareVersion{Major: 18, Minor: 2})
//	if protocol.IsIntegrityError(err) {
//	    // incomplete transfer, read again
//	}
//
// Histogram layouts depend on firmware: N2 firmware before 16 reports the
// sampling period in clock ticks and separate temperature and pressure
// fields; firmware 16 and later report a float period and a single slot that
// carries either temperature or pressure (see DisambiguateTemperaturePressure).
//
// # Bin boundaries
//
// LookupBoundary and NearestADC convert between 12-bit ADC codes and
// particle diameters in microns.
package protocol
