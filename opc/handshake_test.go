package opc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-opc/protocol"
)

func n3Policy() protocol.HandshakePolicy {
	return protocol.N3Profile().Handshake
}

func TestAwaitReadyTimesOut(t *testing.T) {
	for _, retries := range []int{1, 4, 7} {
		conn := newScriptedConn()
		clock := NewMockClock(time.Time{})
		hs := NewHandshake(conn, clock, n3Policy(), retries, 0)

		status, err := hs.AwaitReady(protocol.CmdHistogram)

		var he *HandshakeTimeoutError
		require.True(t, errors.As(err, &he), "retries=%d: %v", retries, err)
		assert.Equal(t, retries, he.Attempts)
		assert.Equal(t, byte(protocol.CmdHistogram), he.Command)
		assert.Equal(t, byte(0x00), status)

		assert.Len(t, conn.sent, retries, "one command byte per attempt")
		want := make([]time.Duration, retries-1)
		for i := range want {
			want[i] = protocol.N3RetryInterval
		}
		assert.Equal(t, want, clock.Sleeps())
	}
}

func TestAwaitReadyCustomInterval(t *testing.T) {
	conn := newScriptedConn()
	clock := NewMockClock(time.Time{})
	hs := NewHandshake(conn, clock, n3Policy(), 3, 250*time.Millisecond)

	_, err := hs.AwaitReady(protocol.CmdPowerControl)
	assert.True(t, IsHandshakeTimeout(err))
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, clock.Sleeps())
}

func TestAwaitReadySucceeds(t *testing.T) {
	conn := newScriptedConn()
	conn.queue(0x00, 0x00, protocol.StatusBusy, protocol.StatusReady)
	clock := NewMockClock(time.Time{})
	hs := NewHandshake(conn, clock, n3Policy(), 5, 0)

	status, err := hs.AwaitReady(protocol.CmdPowerControl)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.StatusReady), status)
	assert.Equal(t, []byte{0x03, 0x03, 0x03, 0x03}, conn.sent)
	assert.Equal(t, []time.Duration{
		protocol.N3RetryInterval,
		protocol.N3RetryInterval,
		protocol.N3Delay,
	}, clock.Sleeps())
}

func TestAwaitReadyUnconfirmedAttemptRetries(t *testing.T) {
	conn := newScriptedConn()
	conn.queue(protocol.StatusBusy, 0x00, protocol.StatusBusy, protocol.StatusReady)
	clock := NewMockClock(time.Time{})
	hs := NewHandshake(conn, clock, n3Policy(), 2, 0)

	status, err := hs.AwaitReady(protocol.CmdHistogram)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.StatusReady), status)
	assert.Len(t, conn.sent, 4)
	assert.Equal(t, []time.Duration{
		protocol.N3Delay,
		protocol.N3RetryInterval,
		protocol.N3Delay,
	}, clock.Sleeps())
}

func TestAwaitReadySingleCheck(t *testing.T) {
	policy := protocol.N2Profile().Handshake

	tests := []struct {
		name  string
		reply byte
	}{
		{name: "ready", reply: protocol.StatusReady},
		{name: "not ready is returned, not retried", reply: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newScriptedConn()
			conn.queue(tt.reply)
			clock := NewMockClock(time.Time{})
			hs := NewHandshake(conn, clock, policy, 5, 0)

			status, err := hs.AwaitReady(protocol.CmdPowerControl)
			require.NoError(t, err)
			assert.Equal(t, tt.reply, status)
			assert.Len(t, conn.sent, 1)
			assert.Empty(t, clock.Sleeps())
		})
	}
}

func TestAwaitReadyTransferError(t *testing.T) {
	conn := newScriptedConn()
	conn.err = errors.New("bus fault")
	hs := NewHandshake(conn, NewMockClock(time.Time{}), n3Policy(), 3, 0)

	_, err := hs.AwaitReady(protocol.CmdHistogram)
	require.Error(t, err)
	assert.ErrorIs(t, err, conn.err)
	assert.False(t, IsHandshakeTimeout(err))
}
