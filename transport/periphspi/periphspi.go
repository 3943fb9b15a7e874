// Package periphspi connects an OPC session to a SPI port provided by
// periph.io, typically a Linux spidev device.
package periphspi

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/moffa90/go-opc/opc"
)

// DefaultFrequency is the SPI clock used when none is given. The OPC
// devices accept 300 kHz to 750 kHz.
const DefaultFrequency = 500 * physic.KiloHertz

var _ opc.Conn = (*Conn)(nil)

// Conn adapts a periph.io spi.Conn to opc.Conn.
type Conn struct {
	conn spi.Conn
	port spi.PortCloser
	mode spi.Mode
}

// New connects to p in SPI mode 1 with 8-bit words. A zero frequency
// selects DefaultFrequency.
//
// The caller keeps ownership of p; Close does not close it.
func New(p spi.Port, f physic.Frequency) (*Conn, error) {
	if p == nil {
		return nil, fmt.Errorf("spi port is nil")
	}
	if f <= 0 {
		f = DefaultFrequency
	}
	c, err := p.Connect(f, opc.RequiredMode, 8)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p, err)
	}
	return &Conn{conn: c, mode: opc.RequiredMode}, nil
}

// Open initializes the periph host drivers and opens the named port, e.g.
// "/dev/spidev0.0" or "SPI0.0". An empty name opens the first port found.
// Close releases the port.
func Open(name string, f physic.Frequency) (*Conn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	c, err := New(p, f)
	if err != nil {
		p.Close()
		return nil, err
	}
	c.port = p
	return c, nil
}

// Transfer clocks out every byte of out in one full-duplex transaction.
func (c *Conn) Transfer(out []byte) ([]byte, error) {
	in := make([]byte, len(out))
	if err := c.conn.Tx(out, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Mode returns the SPI mode the port was connected with.
func (c *Conn) Mode() spi.Mode {
	return c.mode
}

// String returns the underlying connection name.
func (c *Conn) String() string {
	return c.conn.String()
}

// Close releases the port if it was opened by Open.
func (c *Conn) Close() error {
	if c.port == nil {
		return nil
	}
	p := c.port
	c.port = nil
	return p.Close()
}
