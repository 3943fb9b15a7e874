package protocol

// Histogram is one read-and-reset histogram. Optional fields are nil when
// the model or firmware does not report them.
type Histogram struct {
	Model  Model  `json:"model" cbor:"model"`
	Layout Layout `json:"layout" cbor:"layout"`

	// Bins holds raw counts, or #/cc after NumberConcentration
	Bins []float64 `json:"bins" cbor:"bins"`

	// Concentration is true once Bins hold number concentrations
	Concentration bool `json:"number_concentration" cbor:"number_concentration"`

	// MToF is the mean time of flight of bins 1, 3, 5 and 7 in µs
	MToF [4]float64 `json:"mtof_us" cbor:"mtof_us"`

	// SamplingPeriod in seconds
	SamplingPeriod float64 `json:"sampling_period_s" cbor:"sampling_period_s"`

	// SampleFlowRate in ml/s
	SampleFlowRate *float64 `json:"sample_flow_rate,omitempty" cbor:"sample_flow_rate,omitempty"`

	// Temperature in °C
	Temperature *float64 `json:"temperature,omitempty" cbor:"temperature,omitempty"`

	// Pressure in Pa
	Pressure *float64 `json:"pressure,omitempty" cbor:"pressure,omitempty"`

	// Humidity in %RH
	Humidity *float64 `json:"humidity,omitempty" cbor:"humidity,omitempty"`

	PM1  float64 `json:"pm1" cbor:"pm1"`
	PM25 float64 `json:"pm2_5" cbor:"pm2_5"`
	PM10 float64 `json:"pm10" cbor:"pm10"`

	Checksum uint16 `json:"checksum" cbor:"checksum"`

	// N3 only
	Reject      *RejectCounts `json:"reject,omitempty" cbor:"reject,omitempty"`
	FanRevCount *uint16       `json:"fan_rev_count,omitempty" cbor:"fan_rev_count,omitempty"`
	LaserStatus *uint16       `json:"laser_status,omitempty" cbor:"laser_status,omitempty"`
}

// RejectCounts are the N3 particle rejection counters.
type RejectCounts struct {
	Glitch     uint16 `json:"glitch" cbor:"glitch"`
	LongTOF    uint16 `json:"long_tof" cbor:"long_tof"`
	Ratio      uint16 `json:"ratio" cbor:"ratio"`
	OutOfRange uint16 `json:"out_of_range" cbor:"out_of_range"`
}

// Config holds the configuration variables (command 0x3C).
type Config struct {
	// BinBoundaries are the 15 ADC bin boundaries
	BinBoundaries [15]uint16

	// BinParticleVolume per bin
	BinParticleVolume [16]float32

	// BinParticleDensity per bin
	BinParticleDensity [16]float32

	// BinSampleVolumeWeight per bin
	BinSampleVolumeWeight [16]float32

	// GainScalingCoefficient
	GSC float32

	// SampleFlowRate in ml/s
	SFR float32

	LaserDAC byte
	FanDAC   byte

	// TOFSFR is only reported by firmware newer than 15
	TOFSFR *byte
}

// Config2 holds the second set of configuration variables (command 0x3D).
type Config2 struct {
	AMSamplingInterval    uint16
	AMIdleIntervalCount   uint16
	AMFanOnIdle           byte
	AMLaserOnIdle         byte
	AMMaxDataArraysInFile uint16
	AMOnlySavePMData      byte
}

// PotStatus is the digital pot status. LaserSwitch and GainToggle are
// reported by the N3 only.
type PotStatus struct {
	FanOn       byte
	LaserOn     byte
	FanDACVal   byte
	LaserDACVal byte
	LaserSwitch *byte
	GainToggle  *byte
}

// PMData holds mass concentrations in µg/m³.
type PMData struct {
	PM1  float32
	PM25 float32
	PM10 float32
}

// GSCSFR holds the N1 gain scaling coefficient and sample flow rate.
type GSCSFR struct {
	GSC float32
	SFR float32
}
