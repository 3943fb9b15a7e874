package opc

import (
	"fmt"
	"time"

	"github.com/moffa90/go-opc/protocol"
)

// Handshake runs the ready check that precedes stateful commands.
//
// With a polling policy (OPC-N3) the command byte is sent until the device
// echoes the policy's Ready byte, pausing the retry interval between
// attempts. After the settle delay the command byte is sent once more and
// must come back as Confirm; otherwise the attempt counts as failed and
// polling continues. Without polling (OPC-N1/N2) the command byte is sent
// once and its status byte returned for the caller to judge.
type Handshake struct {
	conn     Conn
	clock    Clock
	policy   protocol.HandshakePolicy
	retries  int
	interval time.Duration
	logger   Logger
}

// NewHandshake creates a handshake over conn. retries below 1 are treated
// as 1. A zero interval selects the policy's own interval.
func NewHandshake(conn Conn, clock Clock, policy protocol.HandshakePolicy, retries int, interval time.Duration) *Handshake {
	if retries < 1 {
		retries = 1
	}
	if interval == 0 {
		interval = policy.Interval
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Handshake{
		conn:     conn,
		clock:    clock,
		policy:   policy,
		retries:  retries,
		interval: interval,
	}
}

// AwaitReady performs the handshake for cmd and returns the last status
// byte read. A polling handshake that exhausts its attempts returns a
// *HandshakeTimeoutError.
func (h *Handshake) AwaitReady(cmd byte) (byte, error) {
	if !h.policy.Poll {
		status, err := transferByte(h.conn, cmd)
		if err != nil {
			return 0, fmt.Errorf("send command 0x%02X: %w", cmd, err)
		}
		return status, nil
	}

	var last byte
	for attempt := 1; attempt <= h.retries; attempt++ {
		if attempt > 1 {
			h.clock.Sleep(h.interval)
		}

		status, err := transferByte(h.conn, cmd)
		if err != nil {
			return 0, fmt.Errorf("poll command 0x%02X: %w", cmd, err)
		}
		last = status
		if status != h.policy.Ready {
			h.logDebug("device busy",
				"command", fmt.Sprintf("0x%02X", cmd),
				"status", fmt.Sprintf("0x%02X", status),
				"attempt", attempt,
			)
			continue
		}

		h.clock.Sleep(h.policy.Settle)
		if h.policy.Confirm == 0 {
			return status, nil
		}

		status, err = transferByte(h.conn, cmd)
		if err != nil {
			return 0, fmt.Errorf("confirm command 0x%02X: %w", cmd, err)
		}
		last = status
		if status == h.policy.Confirm {
			return status, nil
		}
		h.logDebug("ready not confirmed",
			"command", fmt.Sprintf("0x%02X", cmd),
			"status", fmt.Sprintf("0x%02X", status),
			"attempt", attempt,
		)
	}

	return last, &HandshakeTimeoutError{
		Command:  cmd,
		Attempts: h.retries,
		Last:     last,
	}
}

func (h *Handshake) logDebug(msg string, keysAndValues ...interface{}) {
	if h.logger != nil {
		h.logger.Debug(msg, keysAndValues...)
	}
}
