package protocol

import "time"

// Command bytes shared by the OPC family. Model-specific sequences are
// assembled from these in the Profile tables (see commands.go).
const (
	// CmdPowerControl turns the fan and laser on or off. It is followed by a
	// model-specific sub-selector byte.
	CmdPowerControl = 0x03

	// CmdPowerOnN1 is the N1 power-on command byte.
	CmdPowerOnN1 = 0x0C

	// CmdSerialNumber reads the 60-byte serial number string
	CmdSerialNumber = 0x10

	// CmdFirmwareVersion reads the major and minor firmware version bytes
	CmdFirmwareVersion = 0x12

	// CmdPotStatus reads the digital pot status
	CmdPotStatus = 0x13

	// CmdHistogram reads and resets the histogram
	CmdHistogram = 0x30

	// CmdPM reads the PM values and resets the histogram
	CmdPM = 0x32

	// CmdCalibration reads N1 calibration values (GSC/SFR, bin boundaries, BPD)
	CmdCalibration = 0x33

	// CmdConfig reads the configuration variables
	CmdConfig = 0x3C

	// CmdConfig2 reads the second set of configuration variables (firmware 18+)
	CmdConfig2 = 0x3D

	// CmdInfoString reads the 60-byte information string
	CmdInfoString = 0x3F

	// CmdSetPower sets the fan or laser power level
	CmdSetPower = 0x42

	// CmdPing checks that the device is listening
	CmdPing = 0xCF
)

// Status bytes returned by the device.
const (
	// StatusReady is the byte the device clocks out when it accepts a command
	StatusReady = 0xF3

	// StatusBusy is the first N3 reply to a command byte while the device
	// prepares its response
	StatusBusy = 0x31

	// StatusPowerAck is the echo expected after a power sub-selector byte
	StatusPowerAck = 0x03

	// FirmwareReadFill is clocked out while reading the firmware version bytes
	FirmwareReadFill = 0x31
)

// Power sub-selector bytes sent after CmdPowerControl.
const (
	// N2 sub-selectors
	SelectN2On        = 0x00
	SelectN2Off       = 0x01
	SelectN2LaserOn   = 0x02
	SelectN2LaserOff  = 0x03
	SelectN2FanOn     = 0x04
	SelectN2FanOff    = 0x05
	SelectN2OnTrailer = 0x01

	// N3 sub-selectors
	SelectN3FanOff   = 0x02
	SelectN3FanOn    = 0x03
	SelectN3LaserOff = 0x06
	SelectN3LaserOn  = 0x07
)

// Selectors sent after CmdSetPower.
const (
	SelectFanPower   = 0x00
	SelectLaserPower = 0x01
)

// Frame lengths in bytes.
const (
	InfoStringLength   = 60
	SerialNumberLength = 60
	HistogramLengthN2  = 62
	HistogramLengthN3  = 86
	ConfigLength       = 256
	Config2Length      = 9
	PotStatusLengthN2  = 4
	PotStatusLengthN3  = 6
	PMLength           = 12
	FirmwareLength     = 2
	GSCSFRLength       = 8
	BinBoundaryFrameN1 = 30
	BPDLength          = 4
)

// Firmware thresholds.
const (
	// FirmwareFloatPeriod is the first major version that reports the
	// sampling period as an IEEE-754 float instead of clock ticks
	FirmwareFloatPeriod = 16

	// FirmwareTOFSFR is the major version after which the config frame
	// carries the TOF_SFR byte
	FirmwareTOFSFR = 15

	// FirmwareExtendedCommands is the first major version supporting
	// config2, pot status, serial number, firmware and PM reads on the N2
	FirmwareExtendedCommands = 18
)

// Conversion constants.
const (
	// ClockTicksPerSecond converts legacy sampling period counts to seconds
	ClockTicksPerSecond = 12e6

	// PressureThreshold is the value above which the ambiguous N2 slot is
	// taken to carry pressure in pascals
	PressureThreshold = 98000

	// TemperatureCutoff is the value at or above which a temperature decoded
	// from the ambiguous N2 slot is rejected as noise
	TemperatureCutoff = 500

	// ChecksumMask keeps the low 16 bits of the bin sum
	ChecksumMask = 0xFFFF
)

// Protocol timing.
const (
	// CommandDelay is the command-to-read delay used by most N1/N2 reads
	CommandDelay = 10 * time.Millisecond

	// PowerDelay is the delay between the power command and its sub-selector
	PowerDelay = 9 * time.Millisecond

	// N3Delay is the inter-command delay of the N3 (must be >10ms and <100ms)
	N3Delay = 20 * time.Millisecond

	// PacedByteDelay is the inter-byte pacing on long frames
	PacedByteDelay = 10 * time.Millisecond

	// PostCommandSettle is the idle time after a transaction completes
	PostCommandSettle = 100 * time.Millisecond

	// N3PowerStepDelay separates the fan and laser steps of N3 power control
	N3PowerStepDelay = time.Second

	// N3RetryInterval is the default wait between N3 ready polls
	N3RetryInterval = 3 * time.Second
)
