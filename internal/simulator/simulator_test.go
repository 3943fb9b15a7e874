package simulator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi"

	"github.com/moffa90/go-opc/opc"
	"github.com/moffa90/go-opc/protocol"
)

func newSession(t *testing.T, cfg Config, opts ...opc.Option) (*opc.Session, *Device, *opc.MockClock) {
	t.Helper()
	dev, err := New(cfg)
	require.NoError(t, err)
	clock := opc.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := opc.New(dev, cfg.Model, append([]opc.Option{opc.WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return s, dev, clock
}

func TestNewRejectsN1(t *testing.T) {
	_, err := New(Config{Model: protocol.ModelN1})
	assert.Error(t, err)
}

func TestModeReported(t *testing.T) {
	dev, err := New(Config{Model: protocol.ModelN2})
	require.NoError(t, err)
	assert.Equal(t, spi.Mode1, dev.Mode())

	dev, err = New(Config{Model: protocol.ModelN2, Mode: spi.Mode3})
	require.NoError(t, err)
	_, err = opc.New(dev, protocol.ModelN2)
	var pe *opc.TransportPreconditionError
	assert.ErrorAs(t, err, &pe)
}

func TestN2SessionDetectsFirmware(t *testing.T) {
	s, _, _ := newSession(t, Config{Model: protocol.ModelN2})

	assert.Equal(t, opc.StateReady, s.State())
	fw, ok := s.Firmware()
	require.True(t, ok)
	assert.Equal(t, protocol.FirmwareVersion{Major: 18, Minor: 2}, fw)
	assert.Equal(t, "Alphasense OPC-N2v18.2", s.String())
}

func TestN2PowerAndHistogram(t *testing.T) {
	s, dev, _ := newSession(t, Config{Model: protocol.ModelN2})

	ok, err := s.On()
	require.NoError(t, err)
	assert.True(t, ok)
	fan, laser := dev.Powered()
	assert.True(t, fan)
	assert.True(t, laser)

	h, err := s.ReadHistogram(false)
	require.NoError(t, err)
	assert.Equal(t, protocol.LayoutN2, h.Layout)
	require.Len(t, h.Bins, 16)
	assert.Equal(t, []float64{200, 100, 66, 50}, h.Bins[:4])
	require.NotNil(t, h.SampleFlowRate)
	assert.InDelta(t, 3.5, *h.SampleFlowRate, 1e-6)
	assert.InDelta(t, 1.4, h.SamplingPeriod, 1e-6)
	require.NotNil(t, h.Pressure)
	assert.Equal(t, 101325.0, *h.Pressure)
	assert.InDelta(t, 3.2, h.PM25, 1e-6)

	h, err = s.ReadHistogram(true)
	require.NoError(t, err)
	assert.True(t, h.Concentration)
	assert.InDelta(t, 207/(3.5*1.4), h.Bins[0], 1e-3)
	assert.Equal(t, 2, dev.HistogramReads())

	ok, err = s.ToggleFan(false)
	require.NoError(t, err)
	assert.True(t, ok)
	fan, laser = dev.Powered()
	assert.False(t, fan)
	assert.True(t, laser)

	ok, err = s.Off()
	require.NoError(t, err)
	assert.True(t, ok)
	fan, laser = dev.Powered()
	assert.False(t, fan)
	assert.False(t, laser)
}

func TestN2ReadsConfiguration(t *testing.T) {
	s, _, _ := newSession(t, Config{Model: protocol.ModelN2, SerialNumber: "OPC-N2 987654"})

	cfg, err := s.ReadConfig()
	require.NoError(t, err)
	assert.InDelta(t, 3.5, cfg.SFR, 1e-6)
	require.NotNil(t, cfg.TOFSFR)
	assert.Equal(t, byte(0x0B), *cfg.TOFSFR)

	cfg2, err := s.ReadConfig2()
	require.NoError(t, err)
	want := &protocol.Config2{
		AMSamplingInterval:    10,
		AMIdleIntervalCount:   6,
		AMMaxDataArraysInFile: 61798,
	}
	if diff := cmp.Diff(want, cfg2); diff != "" {
		t.Errorf("config2 mismatch (-want +got):\n%s", diff)
	}

	sn, err := s.ReadSerialNumber()
	require.NoError(t, err)
	assert.Contains(t, sn, "OPC-N2 987654")

	pm, err := s.ReadPM()
	require.NoError(t, err)
	assert.InDelta(t, 8.75, pm.PM10, 1e-6)

	fw, err := s.ReadFirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, protocol.FirmwareVersion{Major: 18, Minor: 2}, fw)

	alive, err := s.Ping()
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestN2SetPower(t *testing.T) {
	s, dev, _ := newSession(t, Config{Model: protocol.ModelN2})

	ok, err := s.SetFanPower(120)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SetLaserPower(200)
	require.NoError(t, err)
	assert.True(t, ok)

	fan, laser := dev.Power()
	assert.Equal(t, byte(120), fan)
	assert.Equal(t, byte(200), laser)

	st, err := s.ReadPotStatus()
	require.NoError(t, err)
	assert.Equal(t, byte(120), st.FanDACVal)
	assert.Equal(t, byte(200), st.LaserDACVal)
	assert.Nil(t, st.LaserSwitch)
}

func TestN2LegacyFirmware(t *testing.T) {
	s, _, _ := newSession(t, Config{Model: protocol.ModelN2, Firmware: protocol.FirmwareVersion{Major: 15}})

	h, err := s.ReadHistogram(false)
	require.NoError(t, err)
	assert.Equal(t, protocol.LayoutLegacy, h.Layout)
	assert.Equal(t, 1.0, h.SamplingPeriod)
	require.NotNil(t, h.Temperature)
	assert.InDelta(t, 21.5, *h.Temperature, 1e-9)

	_, err = s.ReadConfig2()
	assert.True(t, protocol.IsFirmwareVersionError(err))
}

func TestCorruptHistogram(t *testing.T) {
	s, dev, _ := newSession(t, Config{Model: protocol.ModelN2})

	dev.CorruptNext(1)
	_, err := s.ReadHistogram(false)
	assert.True(t, protocol.IsIntegrityError(err))

	_, err = s.ReadHistogram(false)
	assert.NoError(t, err)
}

func TestN3Session(t *testing.T) {
	s, dev, clock := newSession(t, Config{Model: protocol.ModelN3, ReadyAfter: 2}, opc.WithDetectFirmware(false))
	assert.Equal(t, opc.StateFirmwareUnknown, s.State())

	ok, err := s.On()
	require.NoError(t, err)
	assert.True(t, ok)
	fan, laser := dev.Powered()
	assert.True(t, fan)
	assert.True(t, laser)
	assert.Equal(t, 1, clock.Count(protocol.N3PowerStepDelay))
	assert.Equal(t, 4, clock.Count(protocol.N3RetryInterval), "two busy polls per power step")

	h, err := s.ReadHistogram(false)
	require.NoError(t, err)
	assert.Equal(t, protocol.LayoutN3, h.Layout)
	require.Len(t, h.Bins, 24)
	assert.Equal(t, 200.0, h.Bins[0])
	require.NotNil(t, h.Temperature)
	assert.InDelta(t, -45+175*25000/65535.0, *h.Temperature, 1e-9)
	require.NotNil(t, h.FanRevCount)
	assert.Equal(t, uint16(10), *h.FanRevCount)

	st, err := s.ReadPotStatus()
	require.NoError(t, err)
	require.NotNil(t, st.LaserSwitch)
	assert.Equal(t, byte(1), *st.LaserSwitch)

	fw, err := s.ReadFirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, protocol.FirmwareVersion{Major: 1, Minor: 17}, fw)
	assert.Equal(t, opc.StateReady, s.State())
}

func TestN3FirmwareNotInInfoString(t *testing.T) {
	s, _, _ := newSession(t, Config{Model: protocol.ModelN3})

	assert.Equal(t, opc.StateFirmwareUnknown, s.State())
	assert.Equal(t, "Alphasense OPC-N3 (firmware unknown)", s.String())

	info, err := s.ReadInfoString()
	require.NoError(t, err)
	assert.Contains(t, info, "OPC-N3")
}

func TestN3HandshakeTimeout(t *testing.T) {
	s, _, _ := newSession(t, Config{Model: protocol.ModelN3, ReadyAfter: 10},
		opc.WithDetectFirmware(false), opc.WithRetries(3))

	_, err := s.ReadHistogram(false)
	assert.True(t, opc.IsHandshakeTimeout(err))
}

func TestWaitWithSimulator(t *testing.T) {
	s, dev, _ := newSession(t, Config{Model: protocol.ModelN2})
	dev.CorruptNext(2)

	h, err := s.Wait(0, 5)
	require.NoError(t, err)
	assert.Len(t, h.Bins, 16)
	assert.Equal(t, 3, dev.HistogramReads())
}
