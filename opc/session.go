package opc

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-opc/protocol"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateDisconnected means the session has no usable transport
	StateDisconnected State = iota

	// StateFirmwareUnknown means the transport is usable but the firmware
	// version has not been determined; version-gated operations fail
	StateFirmwareUnknown

	// StateReady means the firmware version is known
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateFirmwareUnknown:
		return "firmware unknown"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session drives one OPC over an exclusive connection. Each method runs one
// complete protocol operation and blocks until the device has answered and
// the post-command settle time has elapsed.
//
// A Session is not safe for concurrent use; the bus carries one transaction
// at a time. Sessions for different devices share nothing.
type Session struct {
	conn      *recordingConn
	profile   protocol.Profile
	config    Config
	handshake *Handshake
	state     State
	firmware  protocol.FirmwareVersion
}

// New creates a Session for the given model.
//
// The connection must be in SPI mode 1, otherwise a
// *TransportPreconditionError is returned. When WithFirmware is given the
// version is checked against the model's supported range and the session
// starts ready. Otherwise, unless detection is disabled, the information
// string is read up to the retry budget; a device whose version cannot be
// parsed still yields a session, in the StateFirmwareUnknown state.
//
// Example:
//
//	conn, _ := periphspi.Open("/dev/spidev0.0")
//	sess, err := opc.New(conn, protocol.ModelN2,
//	    opc.WithLogger(slog.Default()),
//	    opc.WithRetries(10),
//	)
func New(conn Conn, model protocol.Model, opts ...Option) (*Session, error) {
	if err := checkConn(conn); err != nil {
		return nil, err
	}

	profile, err := protocol.ProfileFor(model)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := &recordingConn{Conn: conn}
	hs := NewHandshake(rc, cfg.Clock, profile.Handshake, cfg.Retries, cfg.RetryInterval)
	hs.logger = cfg.Logger

	s := &Session{
		conn:      rc,
		profile:   profile,
		config:    cfg,
		handshake: hs,
		state:     StateFirmwareUnknown,
	}

	if cfg.Firmware != nil {
		if err := s.setFirmware(*cfg.Firmware); err != nil {
			return nil, err
		}
		return s, nil
	}

	if cfg.DetectFirmware {
		if err := s.DetectFirmware(); err != nil {
			var fe *protocol.FirmwareVersionError
			if errors.As(err, &fe) && !fe.Firmware.IsZero() {
				return nil, err
			}
			s.logWarn("firmware version could not be detected",
				"model", model.String(),
				"attempts", cfg.Retries,
			)
		}
	}

	return s, nil
}

// Model returns the device variant.
func (s *Session) Model() protocol.Model {
	return s.profile.Model
}

// Profile returns the command profile in use.
func (s *Session) Profile() protocol.Profile {
	return s.profile
}

// State returns the session state.
func (s *Session) State() State {
	return s.state
}

// Firmware returns the firmware version and whether it is known.
func (s *Session) Firmware() (protocol.FirmwareVersion, bool) {
	return s.firmware, s.state == StateReady
}

// String renders the session as "Alphasense OPC-N2v18.2".
func (s *Session) String() string {
	if s.state != StateReady {
		return fmt.Sprintf("Alphasense OPC-%s (firmware unknown)", s.profile.Model)
	}
	return fmt.Sprintf("Alphasense OPC-%sv%s", s.profile.Model, s.firmware)
}

// Close marks the session disconnected and closes the connection if it
// implements io.Closer.
func (s *Session) Close() error {
	if s.state == StateDisconnected {
		return nil
	}
	s.state = StateDisconnected
	if c, ok := s.conn.Conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DetectFirmware reads the information string until a firmware version can
// be parsed from it, up to the retry budget. A version outside the model's
// range, or no version at all, yields a *protocol.FirmwareVersionError.
func (s *Session) DetectFirmware() error {
	if s.state == StateDisconnected {
		return ErrDisconnected
	}

	interval := s.config.RetryInterval
	if interval == 0 {
		interval = DefaultRetryInterval
	}

	for attempt := 1; attempt <= s.config.Retries; attempt++ {
		if attempt > 1 {
			s.config.Clock.Sleep(interval)
		}

		info, err := s.ReadInfoString()
		if err != nil {
			s.logDebug("info string read failed", "attempt", attempt, "error", err)
			continue
		}

		fw, ok := protocol.ParseInfoStringFirmware(info)
		if !ok {
			s.logDebug("no firmware version in info string",
				"attempt", attempt,
				"info", strings.TrimSpace(info),
			)
			continue
		}

		s.logDebug("firmware detected", "firmware", fw.String(), "attempt", attempt)
		return s.setFirmware(fw)
	}

	return &protocol.FirmwareVersionError{Required: s.profile.Firmware.String()}
}

// setFirmware stores fw and moves the session to StateReady.
func (s *Session) setFirmware(fw protocol.FirmwareVersion) error {
	if !s.profile.Firmware.Contains(fw) {
		return &protocol.FirmwareVersionError{
			Firmware: fw,
			Required: s.profile.Firmware.String(),
		}
	}
	s.firmware = fw
	s.state = StateReady
	return nil
}

// decodeFirmware is the version used to pick decode branches. An N2 of
// unknown version is assumed to be on the newest supported firmware.
func (s *Session) decodeFirmware() protocol.FirmwareVersion {
	if s.state == StateReady {
		return s.firmware
	}
	if s.profile.Model == protocol.ModelN2 {
		return protocol.FirmwareVersion{Major: s.profile.Firmware.Max}
	}
	return protocol.FirmwareVersion{}
}

// command looks up op and enforces its firmware gate.
func (s *Session) command(op protocol.Op) (protocol.Command, error) {
	if s.state == StateDisconnected {
		return protocol.Command{}, ErrDisconnected
	}

	c, ok := s.profile.Command(op)
	if !ok {
		return protocol.Command{}, &UnsupportedOperationError{
			Model:     s.profile.Model,
			Operation: op.String(),
		}
	}

	if c.MinFirmware > 0 && (s.state != StateReady || !s.firmware.AtLeast(c.MinFirmware, 0)) {
		s.logDebug("operation refused by firmware gate",
			"op", op.String(),
			"firmware", s.firmware.String(),
			"required", c.MinFirmware,
		)
		return protocol.Command{}, &protocol.FirmwareVersionError{
			Operation: op.String(),
			Firmware:  s.firmware,
			Required:  fmt.Sprintf(">= %d.0", c.MinFirmware),
		}
	}

	return c, nil
}

// do runs fn as one transaction of op: the gate is checked, fn talks to the
// bus, and on success the post-command settle delay follows. The tracer
// sees the transaction either way.
func (s *Session) do(op protocol.Op, fn func(c protocol.Command) error) error {
	c, err := s.command(op)
	if err != nil {
		return err
	}

	err = fn(c)
	if err == nil {
		s.sleep(protocol.PostCommandSettle)
	}
	s.trace(op, err)
	return err
}

// read runs the command-then-clock-in pattern for op and returns the frame.
func (s *Session) read(op protocol.Op) ([]byte, error) {
	var frame []byte
	err := s.do(op, func(c protocol.Command) error {
		if c.Handshake {
			if _, err := s.handshake.AwaitReady(c.Code); err != nil {
				return err
			}
			s.sleep(c.Delay)
		} else {
			for i := 0; i <= c.Repeat; i++ {
				if _, err := transferByte(s.conn, c.Code); err != nil {
					return fmt.Errorf("%s: send command: %w", op, err)
				}
				s.sleep(c.Delay)
			}
		}

		frame = make([]byte, c.Length)
		for i := range frame {
			if i > 0 {
				s.sleep(c.ByteDelay)
			}
			b, err := transferByte(s.conn, c.Fill)
			if err != nil {
				return fmt.Errorf("%s: read byte %d: %w", op, i, err)
			}
			frame[i] = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// ReadInfoString reads the 60-character information string, e.g.
// "OPC-N2 FirmwareVer=OPC-018.2....................BD".
func (s *Session) ReadInfoString() (string, error) {
	frame, err := s.read(protocol.OpInfoString)
	if err != nil {
		return "", err
	}
	return protocol.DecodeString(frame), nil
}

// ReadSerialNumber reads the 60-character serial number string.
// OPC-N2 firmware 18+ and OPC-N3.
func (s *Session) ReadSerialNumber() (string, error) {
	frame, err := s.read(protocol.OpSerialNumber)
	if err != nil {
		return "", err
	}
	return protocol.DecodeString(frame), nil
}

// ReadFirmwareVersion reads the major and minor firmware version and makes
// it the session's version. OPC-N2 firmware 18+ and OPC-N3.
func (s *Session) ReadFirmwareVersion() (protocol.FirmwareVersion, error) {
	frame, err := s.read(protocol.OpFirmwareVersion)
	if err != nil {
		return protocol.FirmwareVersion{}, err
	}
	fw, err := protocol.DecodeFirmwareVersion(frame)
	if err != nil {
		return protocol.FirmwareVersion{}, err
	}
	return fw, s.setFirmware(fw)
}

// ReadHistogram reads and resets the histogram.
//
// The bin counts are verified against the frame checksum; a mismatch
// returns a *protocol.IntegrityError and the reading is discarded. Since
// the device clears its counters on every read, the counts of a failed
// read are lost. With numberConcentration the bins are converted to
// particles per cubic centimetre.
func (s *Session) ReadHistogram(numberConcentration bool) (*protocol.Histogram, error) {
	frame, err := s.read(protocol.OpHistogram)
	if err != nil {
		return nil, err
	}

	h, err := protocol.DecodeHistogram(frame, s.profile, s.decodeFirmware())
	if err != nil {
		if protocol.IsIntegrityError(err) {
			s.logWarn("histogram discarded", "error", err)
		}
		return nil, err
	}

	if numberConcentration {
		if err := h.NumberConcentration(); err != nil {
			return nil, fmt.Errorf("number concentration: %w", err)
		}
	}
	return h, nil
}

// ReadConfig reads the configuration variables (OPC-N2).
func (s *Session) ReadConfig() (*protocol.Config, error) {
	frame, err := s.read(protocol.OpConfig)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeConfig(frame, s.decodeFirmware())
}

// ReadConfig2 reads the second set of configuration variables.
// OPC-N2 firmware 18+ only.
func (s *Session) ReadConfig2() (*protocol.Config2, error) {
	frame, err := s.read(protocol.OpConfig2)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeConfig2(frame)
}

// ReadPotStatus reads the digital pot status: 4 bytes on the OPC-N2
// (firmware 18+), 6 on the OPC-N3.
func (s *Session) ReadPotStatus() (*protocol.PotStatus, error) {
	frame, err := s.read(protocol.OpPotStatus)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePotStatus(frame)
}

// ReadPM reads the PM1, PM2.5 and PM10 values and resets the histogram.
// OPC-N2 firmware 18+ only.
func (s *Session) ReadPM() (*protocol.PMData, error) {
	frame, err := s.read(protocol.OpPM)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePM(frame)
}

// ReadGSCSFR reads the gain scaling coefficient and sample flow rate (OPC-N1).
func (s *Session) ReadGSCSFR() (*protocol.GSCSFR, error) {
	frame, err := s.read(protocol.OpGSCSFR)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeGSCSFR(frame)
}

// ReadBinBoundaries reads the bin boundary ADC codes (OPC-N1).
func (s *Session) ReadBinBoundaries() ([]uint16, error) {
	frame, err := s.read(protocol.OpBinBoundaries)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeBinBoundaries(frame)
}

// ReadBinParticleDensity reads the bin particle density (OPC-N1).
func (s *Session) ReadBinParticleDensity() (float32, error) {
	frame, err := s.read(protocol.OpBinParticleDensity)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeBinParticleDensity(frame)
}

// Ping checks that the device answers the ping byte with 0xF3.
func (s *Session) Ping() (bool, error) {
	var ok bool
	err := s.do(protocol.OpPing, func(c protocol.Command) error {
		status, err := transferByte(s.conn, c.Code)
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		ok = status == protocol.StatusReady
		return nil
	})
	return ok, err
}

// On turns the fan and laser on. The result reports whether the device
// acknowledged every step.
func (s *Session) On() (bool, error) {
	return s.power("on", func(c protocol.Command) (bool, error) {
		switch s.profile.Model {
		case protocol.ModelN1:
			return s.n1Power(protocol.CmdPowerOnN1, c.Delay)
		case protocol.ModelN3:
			return s.n3PowerPair(c, protocol.SelectN3FanOn, protocol.SelectN3LaserOn)
		default:
			return s.n2PowerOn(c)
		}
	})
}

// Off turns the fan and laser off.
func (s *Session) Off() (bool, error) {
	return s.power("off", func(c protocol.Command) (bool, error) {
		switch s.profile.Model {
		case protocol.ModelN1:
			return s.n1Power(protocol.CmdPowerControl, c.Delay)
		case protocol.ModelN3:
			return s.n3PowerPair(c, protocol.SelectN3LaserOff, protocol.SelectN3FanOff)
		default:
			return s.n2PowerStep(c, protocol.SelectN2Off, c.Delay)
		}
	})
}

// ToggleFan switches only the fan (OPC-N2, OPC-N3).
func (s *Session) ToggleFan(on bool) (bool, error) {
	return s.toggle("toggle fan", on,
		[2]byte{protocol.SelectN2FanOn, protocol.SelectN2FanOff},
		[2]byte{protocol.SelectN3FanOn, protocol.SelectN3FanOff},
	)
}

// ToggleLaser switches only the laser (OPC-N2, OPC-N3).
func (s *Session) ToggleLaser(on bool) (bool, error) {
	return s.toggle("toggle laser", on,
		[2]byte{protocol.SelectN2LaserOn, protocol.SelectN2LaserOff},
		[2]byte{protocol.SelectN3LaserOn, protocol.SelectN3LaserOff},
	)
}

func (s *Session) toggle(name string, on bool, n2, n3 [2]byte) (bool, error) {
	pick := func(sel [2]byte) byte {
		if on {
			return sel[0]
		}
		return sel[1]
	}
	return s.power(name, func(c protocol.Command) (bool, error) {
		switch s.profile.Model {
		case protocol.ModelN2:
			return s.n2PowerStep(c, pick(n2), protocol.CommandDelay)
		case protocol.ModelN3:
			return s.n3PowerStep(c, pick(n3))
		}
		return false, &UnsupportedOperationError{Model: s.profile.Model, Operation: name}
	})
}

// power wraps a power-control sequence in one transaction.
func (s *Session) power(name string, fn func(c protocol.Command) (bool, error)) (bool, error) {
	var ok bool
	err := s.do(protocol.OpPower, func(c protocol.Command) error {
		var err error
		ok, err = fn(c)
		if err != nil {
			return err
		}
		if !ok {
			s.logWarn("power command not acknowledged", "command", name)
		}
		return nil
	})
	return ok, err
}

func (s *Session) n1Power(cmd byte, delay time.Duration) (bool, error) {
	status, err := s.handshake.AwaitReady(cmd)
	if err != nil {
		return false, err
	}
	s.sleep(delay)
	return status == protocol.StatusReady, nil
}

func (s *Session) n2PowerOn(c protocol.Command) (bool, error) {
	status, err := s.handshake.AwaitReady(c.Code)
	if err != nil {
		return false, err
	}
	s.sleep(c.Delay)

	in, err := s.conn.Transfer([]byte{protocol.SelectN2On, protocol.SelectN2OnTrailer})
	if err != nil {
		return false, fmt.Errorf("power: %w", err)
	}
	if len(in) != 2 {
		return false, fmt.Errorf("power: transfer returned %d bytes for 2 sent", len(in))
	}
	return status == protocol.StatusReady && in[0] == protocol.StatusPowerAck, nil
}

func (s *Session) n2PowerStep(c protocol.Command, selector byte, delay time.Duration) (bool, error) {
	status, err := s.handshake.AwaitReady(c.Code)
	if err != nil {
		return false, err
	}
	s.sleep(delay)

	ack, err := transferByte(s.conn, selector)
	if err != nil {
		return false, fmt.Errorf("power: %w", err)
	}
	return status == protocol.StatusReady && ack == protocol.StatusPowerAck, nil
}

// n3PowerPair runs two N3 power steps separated by the fan spin-up pause.
func (s *Session) n3PowerPair(c protocol.Command, first, second byte) (bool, error) {
	ok1, err := s.n3PowerStep(c, first)
	if err != nil {
		return false, err
	}
	s.sleep(protocol.N3PowerStepDelay)

	ok2, err := s.n3PowerStep(c, second)
	if err != nil {
		return false, err
	}
	return ok1 && ok2, nil
}

// n3PowerStep performs the ready handshake and sends one selector. The
// handshake has already confirmed the 0xF3 status.
func (s *Session) n3PowerStep(c protocol.Command, selector byte) (bool, error) {
	if _, err := s.handshake.AwaitReady(c.Code); err != nil {
		return false, err
	}
	s.sleep(c.Delay)

	ack, err := transferByte(s.conn, selector)
	if err != nil {
		return false, fmt.Errorf("power: %w", err)
	}
	return ack == protocol.StatusPowerAck, nil
}

// SetFanPower sets the fan power level (OPC-N2). power must be in
// [0, 255]; other values return a *ValidationError without bus traffic.
func (s *Session) SetFanPower(power int) (bool, error) {
	return s.setPower("fan power", protocol.SelectFanPower, power)
}

// SetLaserPower sets the laser power level (OPC-N2). power must be in
// [0, 255]; other values return a *ValidationError without bus traffic.
func (s *Session) SetLaserPower(power int) (bool, error) {
	return s.setPower("laser power", protocol.SelectLaserPower, power)
}

func (s *Session) setPower(field string, selector byte, power int) (bool, error) {
	if power < 0 || power > 255 {
		return false, &ValidationError{
			Field:  field,
			Value:  power,
			Reason: "must be a single byte (0-255)",
		}
	}

	var ok bool
	err := s.do(protocol.OpSetPower, func(c protocol.Command) error {
		a, err := transferByte(s.conn, c.Code)
		if err != nil {
			return fmt.Errorf("set %s: %w", field, err)
		}
		s.sleep(c.Delay)

		b, err := transferByte(s.conn, selector)
		if err != nil {
			return fmt.Errorf("set %s: %w", field, err)
		}
		v, err := transferByte(s.conn, byte(power))
		if err != nil {
			return fmt.Errorf("set %s: %w", field, err)
		}
		ok = a == protocol.StatusReady && b == c.Code && v == selector
		return nil
	})
	return ok, err
}

// Wait turns the device on and polls the histogram every checkInterval
// until a reading decodes, giving up after maxAttempts reads. The first
// good histogram is returned; its counts cover the start-up period and are
// usually discarded.
func (s *Session) Wait(checkInterval time.Duration, maxAttempts int) (*protocol.Histogram, error) {
	if maxAttempts < 1 {
		return nil, &ValidationError{Field: "attempts", Value: maxAttempts, Reason: "must be at least 1"}
	}
	if checkInterval <= 0 {
		checkInterval = DefaultWaitInterval
	}

	if _, err := s.On(); err != nil {
		return nil, fmt.Errorf("power on: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(checkInterval)
		}

		h, err := s.ReadHistogram(false)
		if err == nil {
			s.logInfo("device ready", "attempts", attempt)
			return h, nil
		}
		lastErr = err
		s.logDebug("device not ready", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("no valid histogram after %d attempts: %w", maxAttempts, lastErr)
}

// WriteConfig is a placeholder: writing configuration variables is not
// implemented and no bytes are sent. It returns ErrNotImplemented.
func (s *Session) WriteConfig(cfg *protocol.Config) error {
	return s.notImplemented(protocol.OpConfig)
}

// WriteConfig2 is a placeholder (OPC-N2 firmware 18+). It returns
// ErrNotImplemented once the firmware gate passes.
func (s *Session) WriteConfig2(cfg *protocol.Config2) error {
	return s.notImplemented(protocol.OpConfig2)
}

// WriteSerialNumber is a placeholder. It returns ErrNotImplemented.
func (s *Session) WriteSerialNumber(serial string) error {
	return s.notImplemented(protocol.OpSerialNumber)
}

// WriteGSCSFR is a placeholder (OPC-N1). It returns ErrNotImplemented.
func (s *Session) WriteGSCSFR(v protocol.GSCSFR) error {
	return s.notImplemented(protocol.OpGSCSFR)
}

// WriteBinParticleDensity is a placeholder (OPC-N1). It returns
// ErrNotImplemented.
func (s *Session) WriteBinParticleDensity(bpd float32) error {
	return s.notImplemented(protocol.OpBinParticleDensity)
}

func (s *Session) notImplemented(op protocol.Op) error {
	if _, err := s.command(op); err != nil {
		return err
	}
	return ErrNotImplemented
}

func (s *Session) sleep(d time.Duration) {
	if d > 0 {
		s.config.Clock.Sleep(d)
	}
}

// trace hands the bytes of the finished transaction to the tracer.
func (s *Session) trace(op protocol.Op, err error) {
	sent, recv := s.conn.take()
	if s.config.Tracer == nil || len(sent) == 0 {
		return
	}
	f := Frame{
		Time:      s.config.Clock.Now(),
		Model:     s.profile.Model.String(),
		Operation: op.String(),
		Sent:      sent,
		Received:  recv,
	}
	if err != nil {
		f.Err = err.Error()
	}
	s.config.Tracer(f)
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is configured.
func (s *Session) logWarn(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, keysAndValues...)
	}
}
