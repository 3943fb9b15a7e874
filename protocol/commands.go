package protocol

import (
	"fmt"
	"time"
)

// Model identifies a device variant.
type Model int

const (
	ModelN1 Model = iota + 1
	ModelN2
	ModelN3
)

func (m Model) String() string {
	switch m {
	case ModelN1:
		return "N1"
	case ModelN2:
		return "N2"
	case ModelN3:
		return "N3"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel parses "N1", "N2" or "N3" (an "OPC-" prefix is accepted).
func ParseModel(s string) (Model, error) {
	switch s {
	case "N1", "n1", "OPC-N1":
		return ModelN1, nil
	case "N2", "n2", "OPC-N2":
		return ModelN2, nil
	case "N3", "n3", "OPC-N3":
		return ModelN3, nil
	}
	return 0, fmt.Errorf("unknown OPC model %q", s)
}

// MarshalText renders the model as "N1", "N2" or "N3".
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseModel does.
func (m *Model) UnmarshalText(b []byte) error {
	v, err := ParseModel(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Layout selects the histogram decode branch.
type Layout int

const (
	// LayoutLegacy is the 62-byte 16-bin frame with raw temperature and
	// pressure fields (N1, N2 before firmware 16).
	LayoutLegacy Layout = iota + 1

	// LayoutN2 is the 62-byte 16-bin frame with a float flow rate and the
	// ambiguous temperature/pressure slot (N2 firmware 16+).
	LayoutN2

	// LayoutN3 is the 86-byte 24-bin frame with scaled 16-bit fields.
	LayoutN3
)

// Op is a logical device operation.
type Op int

const (
	OpInfoString Op = iota + 1
	OpSerialNumber
	OpFirmwareVersion
	OpPotStatus
	OpHistogram
	OpPM
	OpConfig
	OpConfig2
	OpGSCSFR
	OpBinBoundaries
	OpBinParticleDensity
	OpPing
	OpPower
	OpSetPower
)

var opNames = map[Op]string{
	OpInfoString:         "info string",
	OpSerialNumber:       "serial number",
	OpFirmwareVersion:    "firmware version",
	OpPotStatus:          "pot status",
	OpHistogram:          "histogram",
	OpPM:                 "pm",
	OpConfig:             "config",
	OpConfig2:            "config2",
	OpGSCSFR:             "gsc/sfr",
	OpBinBoundaries:      "bin boundaries",
	OpBinParticleDensity: "bin particle density",
	OpPing:               "ping",
	OpPower:              "power control",
	OpSetPower:           "set power",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command describes one read transaction on the wire: the command byte is
// sent Repeat+1 times (Delay after each), then Length bytes are clocked in
// by sending Fill, with ByteDelay between bytes.
type Command struct {
	Code      byte
	Repeat    int
	Delay     time.Duration
	Length    int
	Fill      byte
	ByteDelay time.Duration

	// Handshake requires the ready-poll before the command (N3)
	Handshake bool

	// MinFirmware gates the operation on the firmware major version; zero
	// means ungated
	MinFirmware int
}

// HandshakePolicy configures the ready-poll that precedes stateful commands.
type HandshakePolicy struct {
	// Poll repeats the command byte until Ready is echoed. When false the
	// command byte is sent once and its status byte returned.
	Poll bool

	// Ready is the echo that ends polling
	Ready byte

	// Confirm, when non-zero, must be returned by a second command byte sent
	// after Settle for the device to count as ready
	Confirm byte

	// Settle is the pause after Ready is observed
	Settle time.Duration

	// Interval is the default pause between polls
	Interval time.Duration
}

// Profile states the command bytes, frame lengths and decode branch of one
// device variant.
type Profile struct {
	Model         Model
	Firmware      Range
	HistogramBins int
	Handshake     HandshakePolicy
	Commands      map[Op]Command
}

// Supports reports whether the profile defines op.
func (p Profile) Supports(op Op) bool {
	_, ok := p.Commands[op]
	return ok
}

// Command returns the command for op.
func (p Profile) Command(op Op) (Command, bool) {
	c, ok := p.Commands[op]
	return c, ok
}

// HistogramLayout selects the histogram decode branch for a firmware version.
func (p Profile) HistogramLayout(fw FirmwareVersion) Layout {
	switch p.Model {
	case ModelN3:
		return LayoutN3
	case ModelN2:
		if fw.Major >= FirmwareFloatPeriod {
			return LayoutN2
		}
	}
	return LayoutLegacy
}

// ProfileFor returns the profile of a model.
func ProfileFor(m Model) (Profile, error) {
	switch m {
	case ModelN1:
		return N1Profile(), nil
	case ModelN2:
		return N2Profile(), nil
	case ModelN3:
		return N3Profile(), nil
	}
	return Profile{}, fmt.Errorf("no profile for %v", m)
}

// infoString is the common information string read: the command byte is
// clocked repeatedly and the device echoes the string.
var infoString = Command{
	Code:   CmdInfoString,
	Delay:  CommandDelay,
	Length: InfoStringLength,
	Fill:   CmdInfoString,
}

var ping = Command{Code: CmdPing}

// N1Profile returns the OPC-N1 profile.
func N1Profile() Profile {
	return Profile{
		Model:         ModelN1,
		Firmware:      AnyFirmware,
		HistogramBins: 16,
		Handshake:     HandshakePolicy{Ready: StatusReady},
		Commands: map[Op]Command{
			OpInfoString:         infoString,
			OpPing:               ping,
			OpPower:              {Code: CmdPowerControl, Delay: PowerDelay},
			OpHistogram:          {Code: CmdHistogram, Delay: CommandDelay, Length: HistogramLengthN2},
			OpGSCSFR:             {Code: CmdCalibration, Delay: CommandDelay, Length: GSCSFRLength},
			OpBinBoundaries:      {Code: CmdCalibration, Delay: CommandDelay, Length: BinBoundaryFrameN1},
			OpBinParticleDensity: {Code: CmdCalibration, Delay: CommandDelay, Length: BPDLength},
		},
	}
}

// N2Profile returns the OPC-N2 profile (firmware 14-18).
func N2Profile() Profile {
	return Profile{
		Model:         ModelN2,
		Firmware:      Range{Min: 14, Max: 18},
		HistogramBins: 16,
		Handshake:     HandshakePolicy{Ready: StatusReady},
		Commands: map[Op]Command{
			OpInfoString:      infoString,
			OpPing:            ping,
			OpPower:           {Code: CmdPowerControl, Delay: PowerDelay},
			OpSetPower:        {Code: CmdSetPower, Delay: CommandDelay},
			OpHistogram:       {Code: CmdHistogram, Delay: CommandDelay, Length: HistogramLengthN2},
			OpConfig:          {Code: CmdConfig, Delay: CommandDelay, Length: ConfigLength, ByteDelay: PacedByteDelay},
			OpConfig2:         {Code: CmdConfig2, Delay: CommandDelay, Length: Config2Length, MinFirmware: FirmwareExtendedCommands},
			OpPotStatus:       {Code: CmdPotStatus, Delay: CommandDelay, Length: PotStatusLengthN2, MinFirmware: FirmwareExtendedCommands},
			OpSerialNumber:    {Code: CmdSerialNumber, Delay: PowerDelay, Length: SerialNumberLength, MinFirmware: FirmwareExtendedCommands},
			OpFirmwareVersion: {Code: CmdFirmwareVersion, Delay: CommandDelay, Length: FirmwareLength, Fill: FirmwareReadFill, MinFirmware: FirmwareExtendedCommands},
			OpPM:              {Code: CmdPM, Delay: CommandDelay, Length: PMLength, MinFirmware: FirmwareExtendedCommands},
		},
	}
}

// N3Profile returns the OPC-N3 profile.
func N3Profile() Profile {
	return Profile{
		Model:         ModelN3,
		Firmware:      AnyFirmware,
		HistogramBins: 24,
		Handshake: HandshakePolicy{
			Poll:     true,
			Ready:    StatusBusy,
			Confirm:  StatusReady,
			Settle:   N3Delay,
			Interval: N3RetryInterval,
		},
		Commands: map[Op]Command{
			OpInfoString:      infoString,
			OpPing:            ping,
			OpPower:           {Code: CmdPowerControl, Delay: N3Delay, Handshake: true},
			OpHistogram:       {Code: CmdHistogram, Delay: N3Delay, Length: HistogramLengthN3, Fill: CmdHistogram, ByteDelay: PacedByteDelay, Handshake: true},
			OpPotStatus:       {Code: CmdPotStatus, Repeat: 1, Delay: N3Delay, Length: PotStatusLengthN3},
			OpSerialNumber:    {Code: CmdSerialNumber, Repeat: 1, Delay: N3Delay, Length: SerialNumberLength, Fill: CmdSerialNumber},
			OpFirmwareVersion: {Code: CmdFirmwareVersion, Delay: CommandDelay, Length: FirmwareLength, Fill: FirmwareReadFill},
		},
	}
}
