package protocol

import (
	"encoding/binary"
	"math"
)

// U16 combines a least and most significant byte into an unsigned 16-bit value.
func U16(lsb, msb byte) uint16 {
	return uint16(msb)<<8 | uint16(lsb)
}

// Uint32LE decodes a little-endian unsigned 32-bit integer.
// Returns false if b holds fewer than 4 bytes.
func Uint32LE(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[:4]), true
}

// Float32 reinterprets exactly 4 raw bytes as an IEEE-754 single.
// The device sends floats in the bus's native (little-endian) order.
func Float32(b []byte) (float32, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), true
}

// PutFloat32 is the inverse of Float32.
func PutFloat32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

// TimeOfFlight converts a raw MToF byte to microseconds.
func TimeOfFlight(b byte) float64 {
	return float64(b) / 3.0
}

// TemperatureScaled converts an N3 temperature pair to °C.
func TemperatureScaled(lsb, msb byte) float64 {
	return -45.0 + 175.0*float64(U16(lsb, msb))/65535.0
}

// HumidityScaled converts an N3 humidity pair to %RH.
func HumidityScaled(lsb, msb byte) float64 {
	return 100.0 * float64(U16(lsb, msb)) / 65535.0
}

// FlowRate converts a 16-bit sample flow rate pair to ml/s.
func FlowRate(lsb, msb byte) float64 {
	return float64(U16(lsb, msb)) / 100.0
}

// PeriodScaled converts an N3 16-bit sampling period pair to seconds.
func PeriodScaled(lsb, msb byte) float64 {
	return float64(U16(lsb, msb)) / 100.0
}

// Temperature decodes a 4-byte N1/N2 temperature field (tenths of °C).
func Temperature(b []byte) (float64, bool) {
	v, ok := Uint32LE(b)
	if !ok {
		return 0, false
	}
	return float64(v) / 10.0, true
}

// Humidity decodes a 4-byte raw humidity field.
func Humidity(b []byte) (float64, bool) {
	v, ok := Uint32LE(b)
	if !ok {
		return 0, false
	}
	return float64(v), true
}

// Pressure decodes a 4-byte pressure field in pascals.
func Pressure(b []byte) (float64, bool) {
	v, ok := Uint32LE(b)
	if !ok {
		return 0, false
	}
	return float64(v), true
}

// SamplingPeriod decodes a 4-byte sampling period in seconds. Firmware
// before FirmwareFloatPeriod reports device clock ticks; later firmware
// reports a float.
func SamplingPeriod(b []byte, fw FirmwareVersion) (float64, bool) {
	if len(b) < 4 {
		return 0, false
	}
	if fw.Major < FirmwareFloatPeriod {
		v, _ := Uint32LE(b)
		return float64(v) / ClockTicksPerSecond, true
	}
	f, ok := Float32(b[:4])
	return float64(f), ok
}

// DisambiguateTemperaturePressure decodes the N2 (firmware 16+) slot that
// carries either temperature or pressure with no type tag.
//
// Sensor-specific: the slot is read as pressure first and accepted when it
// exceeds PressureThreshold; otherwise it is read as temperature and
// accepted below TemperatureCutoff; otherwise neither is reported.
func DisambiguateTemperaturePressure(b []byte) (temperature, pressure *float64) {
	p, ok := Pressure(b)
	if !ok {
		return nil, nil
	}
	if p > PressureThreshold {
		return nil, &p
	}
	t, _ := Temperature(b)
	if t < TemperatureCutoff {
		return &t, nil
	}
	return nil, nil
}
