// Package usbiss drives an OPC through a Devantech USB-ISS adapter, a USB
// virtual COM port that bridges to SPI.
package usbiss

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/moffa90/go-opc/opc"
)

// Adapter command set.
const (
	cmdISS     = 0x5A
	cmdVersion = 0x01
	cmdSetMode = 0x02
	cmdSPI     = 0x61

	ack  = 0xFF
	nack = 0x00

	// moduleID is the first byte of the version reply.
	moduleID = 0x07

	// maxTransfer is the largest SPI payload of one adapter command.
	maxTransfer = 62

	// baseClock is divided by (divisor+1) to produce SCK.
	baseClock = 6 * physic.MegaHertz
)

// modeBytes maps SPI modes to the adapter's I/O mode byte.
var modeBytes = map[spi.Mode]byte{
	spi.Mode0: 0x90,
	spi.Mode1: 0x92,
	spi.Mode2: 0x91,
	spi.Mode3: 0x93,
}

// DefaultReadTimeout bounds each reply from the adapter.
const DefaultReadTimeout = time.Second

// ErrNack is returned when the adapter rejects a command.
var ErrNack = errors.New("usb-iss: command not acknowledged")

// Version is the adapter identification.
type Version struct {
	ModuleID byte
	Firmware byte
	Mode     byte
}

// Conn is an opc.Conn over a USB-ISS adapter.
type Conn struct {
	port io.ReadWriter
	mode spi.Mode
}

var _ opc.Conn = (*Conn)(nil)

// Open opens the adapter's serial device (e.g. "/dev/ttyACM0" or "COM3"),
// checks its identity and configures SPI mode 1 at frequency f. A zero
// frequency selects 500 kHz.
func Open(path string, f physic.Frequency) (*Conn, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	c := &Conn{port: port}
	v, err := c.Version()
	if err != nil {
		port.Close()
		return nil, err
	}
	if v.ModuleID != moduleID {
		port.Close()
		return nil, fmt.Errorf("%s is not a USB-ISS (module id 0x%02X)", path, v.ModuleID)
	}
	if err := c.configure(opc.RequiredMode, f); err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// New configures an already open adapter port. Tests pass an in-memory
// ReadWriter; reads must return an error rather than block forever.
func New(port io.ReadWriter, mode spi.Mode, f physic.Frequency) (*Conn, error) {
	c := &Conn{port: port}
	if err := c.configure(mode, f); err != nil {
		return nil, err
	}
	return c, nil
}

// Divisor returns the adapter clock divisor for frequency f, rounded so
// that SCK does not exceed f.
func Divisor(f physic.Frequency) (byte, error) {
	if f <= 0 {
		f = 500 * physic.KiloHertz
	}
	if f > baseClock {
		return 0, fmt.Errorf("usb-iss: frequency %s above %s", f, baseClock)
	}
	d := (baseClock + f - 1) / f
	if d > 256 {
		return 0, fmt.Errorf("usb-iss: frequency %s below %s", f, baseClock/256)
	}
	return byte(d - 1), nil
}

func (c *Conn) configure(mode spi.Mode, f physic.Frequency) error {
	mb, ok := modeBytes[mode&spi.Mode3]
	if !ok {
		return fmt.Errorf("usb-iss: unsupported SPI mode %d", mode)
	}
	div, err := Divisor(f)
	if err != nil {
		return err
	}
	if _, err := c.port.Write([]byte{cmdISS, cmdSetMode, mb, div}); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	reply := make([]byte, 2)
	if err := readFull(c.port, reply); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if reply[0] != ack {
		return fmt.Errorf("set mode (error 0x%02X): %w", reply[1], ErrNack)
	}
	c.mode = mode & spi.Mode3
	return nil
}

// Version reads the adapter identification.
func (c *Conn) Version() (Version, error) {
	if _, err := c.port.Write([]byte{cmdISS, cmdVersion}); err != nil {
		return Version{}, fmt.Errorf("read version: %w", err)
	}
	b := make([]byte, 3)
	if err := readFull(c.port, b); err != nil {
		return Version{}, fmt.Errorf("read version: %w", err)
	}
	return Version{ModuleID: b[0], Firmware: b[1], Mode: b[2]}, nil
}

// Transfer sends out as one SPI transaction. The adapter holds chip select
// for the whole command, so out is limited to 62 bytes.
func (c *Conn) Transfer(out []byte) ([]byte, error) {
	if len(out) == 0 {
		return nil, nil
	}
	if len(out) > maxTransfer {
		return nil, fmt.Errorf("usb-iss: transfer of %d bytes exceeds %d", len(out), maxTransfer)
	}
	cmd := make([]byte, 0, len(out)+1)
	cmd = append(cmd, cmdSPI)
	cmd = append(cmd, out...)
	if _, err := c.port.Write(cmd); err != nil {
		return nil, fmt.Errorf("spi write: %w", err)
	}

	reply := make([]byte, len(out)+1)
	if err := readFull(c.port, reply); err != nil {
		return nil, fmt.Errorf("spi read: %w", err)
	}
	if reply[0] == nack {
		return nil, ErrNack
	}
	return reply[1:], nil
}

// Mode returns the configured SPI mode.
func (c *Conn) Mode() spi.Mode {
	return c.mode
}

// Close closes the serial port if it can be closed.
func (c *Conn) Close() error {
	if cl, ok := c.port.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// readFull fills b. go.bug.st/serial reports a read timeout as (0, nil),
// which io.ReadFull would spin on.
func readFull(r io.Reader, b []byte) error {
	for n := 0; n < len(b); {
		m, err := r.Read(b[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			return fmt.Errorf("timeout after %d of %d bytes", n, len(b))
		}
		n += m
	}
	return nil
}
