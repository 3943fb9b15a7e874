package protocol

import (
	"fmt"
	"regexp"
	"strconv"
)

// FirmwareVersion identifies the device firmware. The zero value means the
// version is unknown.
type FirmwareVersion struct {
	Major int
	Minor int
}

// Version returns the version as the decimal major.minor.
func (v FirmwareVersion) Version() float64 {
	f, _ := strconv.ParseFloat(fmt.Sprintf("%d.%d", v.Major, v.Minor), 64)
	return f
}

// AtLeast reports whether v is major.minor or newer.
func (v FirmwareVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// IsZero reports whether the version is unknown.
func (v FirmwareVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Range is an inclusive range of firmware major versions.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v's major version lies inside the range.
func (r Range) Contains(v FirmwareVersion) bool {
	return v.Major >= r.Min && v.Major <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// AnyFirmware accepts every firmware version.
var AnyFirmware = Range{Min: 0, Max: 9999}

var (
	infoVersionPattern = regexp.MustCompile(`(\d{3})\.(\d+)`)
	infoMajorPattern   = regexp.MustCompile(`\d{3}`)
)

// ParseInfoStringFirmware extracts the firmware version from an information
// string such as "OPC-N2 FirmwareVer=OPC-018.2....BD". The last three-digit
// group is the major version; a following ".N" is the minor version.
func ParseInfoStringFirmware(info string) (FirmwareVersion, bool) {
	if m := infoVersionPattern.FindAllStringSubmatch(info, -1); len(m) > 0 {
		last := m[len(m)-1]
		major, _ := strconv.Atoi(last[1])
		minor, _ := strconv.Atoi(last[2])
		if major > 0 {
			return FirmwareVersion{Major: major, Minor: minor}, true
		}
	}

	groups := infoMajorPattern.FindAllString(info, -1)
	if len(groups) == 0 {
		return FirmwareVersion{}, false
	}
	major, _ := strconv.Atoi(groups[len(groups)-1])
	if major == 0 {
		return FirmwareVersion{}, false
	}
	return FirmwareVersion{Major: major}, true
}
