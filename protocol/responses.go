package protocol

import (
	"strings"
)

// N1BinBoundaryCount is the number of boundaries decoded from the N1
// calibration frame.
const N1BinBoundaryCount = 14

func checkLength(op Op, data []byte, want int) error {
	if len(data) < want {
		return &ShortFrameError{Operation: op.String(), Got: len(data), Want: want}
	}
	return nil
}

// DecodeConfig parses the 256-byte configuration frame.
//
// Data format:
//
//	[BB 15x2 @0][BPV 16x4 @32][BPD 16x4 @96][BSVW 16x4 @160][GSC 4 @224][SFR 4 @228][LDAC @232][FDAC @233][TOF_SFR @234]
func DecodeConfig(data []byte, fw FirmwareVersion) (*Config, error) {
	if err := checkLength(OpConfig, data, ConfigLength); err != nil {
		return nil, err
	}

	cfg := &Config{}
	for i := range cfg.BinBoundaries {
		cfg.BinBoundaries[i] = U16(data[2*i], data[2*i+1])
	}
	for i := 0; i < 16; i++ {
		cfg.BinParticleVolume[i] = mustFloat32(data[32+4*i : 36+4*i])
		cfg.BinParticleDensity[i] = mustFloat32(data[96+4*i : 100+4*i])
		cfg.BinSampleVolumeWeight[i] = mustFloat32(data[160+4*i : 164+4*i])
	}
	cfg.GSC = mustFloat32(data[224:228])
	cfg.SFR = mustFloat32(data[228:232])
	cfg.LaserDAC = data[232]
	cfg.FanDAC = data[233]

	if fw.Major > FirmwareTOFSFR {
		tof := data[234]
		cfg.TOFSFR = &tof
	}

	return cfg, nil
}

// DecodeConfig2 parses the 9-byte second configuration frame.
func DecodeConfig2(data []byte) (*Config2, error) {
	if err := checkLength(OpConfig2, data, Config2Length); err != nil {
		return nil, err
	}

	return &Config2{
		AMSamplingInterval:    U16(data[0], data[1]),
		AMIdleIntervalCount:   U16(data[2], data[3]),
		AMFanOnIdle:           data[4],
		AMLaserOnIdle:         data[5],
		AMMaxDataArraysInFile: U16(data[6], data[7]),
		AMOnlySavePMData:      data[8],
	}, nil
}

// DecodePotStatus parses a 4-byte (N2) or 6-byte (N3) pot status frame.
func DecodePotStatus(data []byte) (*PotStatus, error) {
	if err := checkLength(OpPotStatus, data, PotStatusLengthN2); err != nil {
		return nil, err
	}

	st := &PotStatus{
		FanOn:       data[0],
		LaserOn:     data[1],
		FanDACVal:   data[2],
		LaserDACVal: data[3],
	}
	if len(data) >= PotStatusLengthN3 {
		sw, gain := data[4], data[5]
		st.LaserSwitch = &sw
		st.GainToggle = &gain
	}
	return st, nil
}

// DecodePM parses the 12-byte PM frame.
func DecodePM(data []byte) (*PMData, error) {
	if err := checkLength(OpPM, data, PMLength); err != nil {
		return nil, err
	}

	return &PMData{
		PM1:  mustFloat32(data[0:4]),
		PM25: mustFloat32(data[4:8]),
		PM10: mustFloat32(data[8:12]),
	}, nil
}

// DecodeGSCSFR parses the N1 gain scaling coefficient and flow rate frame.
func DecodeGSCSFR(data []byte) (*GSCSFR, error) {
	if err := checkLength(OpGSCSFR, data, GSCSFRLength); err != nil {
		return nil, err
	}

	return &GSCSFR{
		GSC: mustFloat32(data[0:4]),
		SFR: mustFloat32(data[4:8]),
	}, nil
}

// DecodeBinBoundaries parses the N1 bin boundary frame into ADC codes.
func DecodeBinBoundaries(data []byte) ([]uint16, error) {
	if err := checkLength(OpBinBoundaries, data, 2*N1BinBoundaryCount); err != nil {
		return nil, err
	}

	bb := make([]uint16, N1BinBoundaryCount)
	for i := range bb {
		bb[i] = U16(data[2*i], data[2*i+1])
	}
	return bb, nil
}

// DecodeBinParticleDensity parses the N1 4-byte bin particle density.
func DecodeBinParticleDensity(data []byte) (float32, error) {
	if err := checkLength(OpBinParticleDensity, data, BPDLength); err != nil {
		return 0, err
	}
	return mustFloat32(data[:4]), nil
}

// DecodeFirmwareVersion parses the 2-byte major/minor firmware frame.
func DecodeFirmwareVersion(data []byte) (FirmwareVersion, error) {
	if err := checkLength(OpFirmwareVersion, data, FirmwareLength); err != nil {
		return FirmwareVersion{}, err
	}
	return FirmwareVersion{Major: int(data[0]), Minor: int(data[1])}, nil
}

// DecodeString converts a fixed-width ASCII frame to a string. Each byte is
// one character, padding included.
func DecodeString(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
