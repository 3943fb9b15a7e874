package opc

import (
	"fmt"

	"periph.io/x/conn/v3/spi"
)

// RequiredMode is the SPI mode (CPOL=0, CPHA=1) all OPC variants use.
const RequiredMode = spi.Mode1

// Conn is the full-duplex byte exchange a Session drives.
//
// Transfer clocks out every byte of out and returns the bytes clocked in,
// one for one. Chip select must stay asserted for the whole slice. Mode
// reports the bus mode the connection was configured with; New refuses a
// connection that is not in RequiredMode.
//
// The transport/periphspi and transport/usbiss packages provide
// implementations for Linux spidev and for a USB-ISS bridge.
type Conn interface {
	Transfer(out []byte) ([]byte, error)
	Mode() spi.Mode
}

// checkConn validates the transport before a session uses it.
func checkConn(c Conn) error {
	if c == nil {
		return &TransportPreconditionError{Reason: "connection is nil"}
	}
	if m := c.Mode() & spi.Mode3; m != RequiredMode {
		return &TransportPreconditionError{
			Reason: fmt.Sprintf("SPI mode must be %d, connection uses %d", RequiredMode, m),
		}
	}
	return nil
}

// transferByte exchanges a single byte.
func transferByte(c Conn, b byte) (byte, error) {
	in, err := c.Transfer([]byte{b})
	if err != nil {
		return 0, err
	}
	if len(in) != 1 {
		return 0, fmt.Errorf("transfer returned %d bytes for 1 sent", len(in))
	}
	return in[0], nil
}

// recordingConn keeps the bytes of the current transaction so they can be
// handed to a Tracer once it completes.
type recordingConn struct {
	Conn
	sent []byte
	recv []byte
}

func (r *recordingConn) Transfer(out []byte) ([]byte, error) {
	in, err := r.Conn.Transfer(out)
	r.sent = append(r.sent, out...)
	r.recv = append(r.recv, in...)
	return in, err
}

// take returns the recorded bytes and starts a new transaction.
func (r *recordingConn) take() (sent, recv []byte) {
	sent, recv = r.sent, r.recv
	r.sent, r.recv = nil, nil
	return sent, recv
}
