package protocol

import (
	"errors"
	"fmt"
)

// ErrZeroSampleVolume is returned when number concentration cannot be
// computed because flow rate times sampling period is zero or not finite.
var ErrZeroSampleVolume = errors.New("sampled volume is zero or not finite")

// ErrNoFlowRate is returned when number concentration is requested for a
// frame layout that does not report the sample flow rate.
var ErrNoFlowRate = errors.New("histogram does not report a sample flow rate")

// IntegrityError reports a histogram whose bin sum does not match the
// embedded checksum, which means the transfer was incomplete or garbled.
type IntegrityError struct {
	// Sum is the low 16 bits of the decoded bin sum
	Sum uint16

	// Checksum is the value embedded in the frame
	Checksum uint16
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("histogram checksum mismatch: bin sum 0x%04X, checksum 0x%04X (incomplete transfer)",
		e.Sum, e.Checksum)
}

// IsIntegrityError returns true if the error is an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// FirmwareVersionError reports an operation that is not valid for the
// active firmware, or a firmware version that could not be determined.
type FirmwareVersionError struct {
	// Operation is the refused operation, empty for detection failures
	Operation string

	// Firmware is the active version; zero when unknown
	Firmware FirmwareVersion

	// Required describes the supported range
	Required string
}

func (e *FirmwareVersionError) Error() string {
	if e.Operation == "" {
		if e.Firmware.IsZero() {
			return "firmware version could not be determined"
		}
		return fmt.Sprintf("firmware v%s is not supported (requires %s)", e.Firmware, e.Required)
	}
	if e.Firmware.IsZero() {
		return fmt.Sprintf("%s requires firmware %s, version unknown", e.Operation, e.Required)
	}
	return fmt.Sprintf("%s requires firmware %s, device has v%s", e.Operation, e.Required, e.Firmware)
}

// IsFirmwareVersionError returns true if the error is a FirmwareVersionError.
func IsFirmwareVersionError(err error) bool {
	var fe *FirmwareVersionError
	return errors.As(err, &fe)
}

// ShortFrameError reports a frame shorter than its layout requires.
type ShortFrameError struct {
	Operation string
	Got       int
	Want      int
}

func (e *ShortFrameError) Error() string {
	return fmt.Sprintf("%s frame too short: got %d bytes, expected %d", e.Operation, e.Got, e.Want)
}
