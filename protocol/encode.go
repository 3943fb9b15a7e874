package protocol

import "encoding/binary"

// HistogramFrame describes a histogram in wire units. It is the input to
// EncodeHistogram, used by device emulators and tests.
type HistogramFrame struct {
	Bins []uint16
	MToF [4]byte

	// Legacy layout
	Temperature uint32 // tenths of °C
	PeriodTicks uint32 // firmware < 16

	// Legacy and N2 layouts
	Pressure uint32  // Pa; the N2 layout puts Slot here instead
	Period   float32 // firmware >= 16

	// N2 layout
	SFR  float32
	Slot uint32 // ambiguous temperature/pressure slot

	// N3 layout
	PeriodRaw   uint16
	SFRRaw      uint16
	TempRaw     uint16
	HumidityRaw uint16
	Reject      RejectCounts
	FanRevCount uint16
	LaserStatus uint16

	PM1, PM25, PM10 float32
}

// EncodeHistogram builds a raw histogram frame with a valid checksum.
func EncodeHistogram(f HistogramFrame, layout Layout, fw FirmwareVersion) []byte {
	le := binary.LittleEndian
	nbins := 16
	size := HistogramLengthN2
	if layout == LayoutN3 {
		nbins = 24
		size = HistogramLengthN3
	}

	b := make([]byte, size)
	counts := make([]uint16, nbins)
	copy(counts, f.Bins)
	for i, c := range counts {
		le.PutUint16(b[2*i:], c)
	}
	off := 2 * nbins
	copy(b[off:off+4], f.MToF[:])
	off += 4

	if layout == LayoutN3 {
		le.PutUint16(b[off:], f.PeriodRaw)
		le.PutUint16(b[off+2:], f.SFRRaw)
		le.PutUint16(b[off+4:], f.TempRaw)
		le.PutUint16(b[off+6:], f.HumidityRaw)
		PutFloat32(b[off+8:], f.PM1)
		PutFloat32(b[off+12:], f.PM25)
		PutFloat32(b[off+16:], f.PM10)
		le.PutUint16(b[off+20:], f.Reject.Glitch)
		le.PutUint16(b[off+22:], f.Reject.LongTOF)
		le.PutUint16(b[off+24:], f.Reject.Ratio)
		le.PutUint16(b[off+26:], f.Reject.OutOfRange)
		le.PutUint16(b[off+28:], f.FanRevCount)
		le.PutUint16(b[off+30:], f.LaserStatus)
		le.PutUint16(b[off+32:], BinSum(counts))
		return b
	}

	if layout == LayoutN2 {
		PutFloat32(b[off:], f.SFR)
		le.PutUint32(b[off+4:], f.Slot)
	} else {
		le.PutUint32(b[off:], f.Temperature)
		le.PutUint32(b[off+4:], f.Pressure)
	}
	off += 8

	if fw.Major < FirmwareFloatPeriod {
		le.PutUint32(b[off:], f.PeriodTicks)
	} else {
		PutFloat32(b[off:], f.Period)
	}
	le.PutUint16(b[off+4:], BinSum(counts))
	PutFloat32(b[off+6:], f.PM1)
	PutFloat32(b[off+10:], f.PM25)
	PutFloat32(b[off+14:], f.PM10)
	return b
}
