package periphspi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// fakePort records the Connect parameters and hands out a fakeConn.
type fakePort struct {
	freq physic.Frequency
	mode spi.Mode
	bits int
	conn *fakeConn
	err  error
}

func (p *fakePort) String() string { return "fake" }

func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.freq, p.mode, p.bits = f, mode, bits
	p.conn = &fakeConn{reply: 0xF3}
	return p.conn, nil
}

type fakeConn struct {
	reply byte
	sent  [][]byte
	err   error
}

func (c *fakeConn) String() string               { return "fake.0" }
func (c *fakeConn) Duplex() conn.Duplex          { return conn.Full }
func (c *fakeConn) TxPackets([]spi.Packet) error { return errors.New("not supported") }

func (c *fakeConn) Tx(w, r []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, append([]byte(nil), w...))
	for i := range r {
		r[i] = c.reply
	}
	return nil
}

func TestNewConnectsInModeOne(t *testing.T) {
	p := &fakePort{}
	c, err := New(p, 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultFrequency, p.freq)
	assert.Equal(t, spi.Mode1, p.mode)
	assert.Equal(t, 8, p.bits)
	assert.Equal(t, spi.Mode1, c.Mode())
	assert.Equal(t, "fake.0", c.String())
}

func TestNewCustomFrequency(t *testing.T) {
	p := &fakePort{}
	_, err := New(p, 300*physic.KiloHertz)
	require.NoError(t, err)
	assert.Equal(t, 300*physic.KiloHertz, p.freq)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, 0)
	assert.Error(t, err)

	boom := errors.New("busy")
	_, err = New(&fakePort{err: boom}, 0)
	assert.ErrorIs(t, err, boom)
}

func TestTransfer(t *testing.T) {
	p := &fakePort{}
	c, err := New(p, 0)
	require.NoError(t, err)

	in, err := c.Transfer([]byte{0x03, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF3, 0xF3}, in)
	assert.Equal(t, [][]byte{{0x03, 0x00}}, p.conn.sent)

	p.conn.err = errors.New("tx failed")
	_, err = c.Transfer([]byte{0x30})
	assert.ErrorIs(t, err, p.conn.err)
}

func TestCloseWithoutOwnedPort(t *testing.T) {
	c, err := New(&fakePort{}, 0)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
