package protocol

import "math"

// DecodeHistogram decodes a raw histogram frame for the given profile and
// firmware, and verifies the bin-sum checksum. Bins hold raw counts; call
// NumberConcentration to normalize.
//
// Legacy and N2 frame layout (62 bytes):
//
//	[BINS 16x2][MTOF 4][TEMP|SFR 4][PRESSURE|TEMP/PRESSURE 4][PERIOD 4][CHECKSUM 2][PM1 4][PM2.5 4][PM10 4]
//
// N3 frame layout (86 bytes):
//
//	[BINS 24x2][MTOF 4][PERIOD 2][SFR 2][TEMP 2][RH 2][PM1 4][PM2.5 4][PM10 4][REJECT 4x2][FANREV 2][LASER 2][CHECKSUM 2]
func DecodeHistogram(raw []byte, p Profile, fw FirmwareVersion) (*Histogram, error) {
	layout := p.HistogramLayout(fw)

	want := HistogramLengthN2
	if layout == LayoutN3 {
		want = HistogramLengthN3
	}
	if len(raw) < want {
		return nil, &ShortFrameError{Operation: OpHistogram.String(), Got: len(raw), Want: want}
	}

	nbins := p.HistogramBins
	counts := make([]uint16, nbins)
	for i := range counts {
		counts[i] = U16(raw[2*i], raw[2*i+1])
	}

	h := &Histogram{
		Model:  p.Model,
		Layout: layout,
		Bins:   make([]float64, nbins),
	}
	for i, c := range counts {
		h.Bins[i] = float64(c)
	}

	off := 2 * nbins
	for i := range h.MToF {
		h.MToF[i] = TimeOfFlight(raw[off+i])
	}
	off += 4

	switch layout {
	case LayoutN3:
		decodeN3Tail(h, raw[off:])
	case LayoutN2:
		sfr, _ := Float32(raw[off : off+4])
		h.SampleFlowRate = f64ptr(float64(sfr))
		h.Temperature, h.Pressure = DisambiguateTemperaturePressure(raw[off+4 : off+8])
		decodeLegacyTail(h, raw[off+8:], fw)
	default:
		if t, ok := Temperature(raw[off : off+4]); ok {
			h.Temperature = &t
		}
		if pr, ok := Pressure(raw[off+4 : off+8]); ok {
			h.Pressure = &pr
		}
		decodeLegacyTail(h, raw[off+8:], fw)
	}

	if err := VerifyChecksum(counts, h.Checksum); err != nil {
		return nil, err
	}
	return h, nil
}

// decodeLegacyTail decodes [PERIOD 4][CHECKSUM 2][PM1 4][PM2.5 4][PM10 4].
func decodeLegacyTail(h *Histogram, b []byte, fw FirmwareVersion) {
	h.SamplingPeriod, _ = SamplingPeriod(b[0:4], fw)
	h.Checksum = U16(b[4], b[5])
	h.PM1 = float64(mustFloat32(b[6:10]))
	h.PM25 = float64(mustFloat32(b[10:14]))
	h.PM10 = float64(mustFloat32(b[14:18]))
}

func decodeN3Tail(h *Histogram, b []byte) {
	h.SamplingPeriod = PeriodScaled(b[0], b[1])
	h.SampleFlowRate = f64ptr(FlowRate(b[2], b[3]))
	h.Temperature = f64ptr(TemperatureScaled(b[4], b[5]))
	h.Humidity = f64ptr(HumidityScaled(b[6], b[7]))
	h.PM1 = float64(mustFloat32(b[8:12]))
	h.PM25 = float64(mustFloat32(b[12:16]))
	h.PM10 = float64(mustFloat32(b[16:20]))
	h.Reject = &RejectCounts{
		Glitch:     U16(b[20], b[21]),
		LongTOF:    U16(b[22], b[23]),
		Ratio:      U16(b[24], b[25]),
		OutOfRange: U16(b[26], b[27]),
	}
	fan := U16(b[28], b[29])
	laser := U16(b[30], b[31])
	h.FanRevCount = &fan
	h.LaserStatus = &laser
	h.Checksum = U16(b[32], b[33])
}

// NumberConcentration converts raw bin counts to particles per cm³ by
// dividing by flow rate times sampling period. The histogram is left
// untouched on error.
func (h *Histogram) NumberConcentration() error {
	if h.Concentration {
		return nil
	}
	if h.SampleFlowRate == nil {
		return ErrNoFlowRate
	}
	volume := *h.SampleFlowRate * h.SamplingPeriod
	if volume == 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return ErrZeroSampleVolume
	}
	for i := range h.Bins {
		h.Bins[i] /= volume
	}
	h.Concentration = true
	return nil
}

// mustFloat32 decodes a float from a slice the caller has already sized.
func mustFloat32(b []byte) float32 {
	f, _ := Float32(b)
	return f
}

func f64ptr(v float64) *float64 {
	return &v
}
