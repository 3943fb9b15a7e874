// Package simulator emulates an OPC-N2 or OPC-N3 at the byte level. A
// Device implements opc.Conn, so a Session can drive it exactly as it
// drives hardware. The opcread -simulate flag and the end-to-end tests use
// it.
package simulator

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"periph.io/x/conn/v3/spi"

	"github.com/moffa90/go-opc/protocol"
)

// HistogramFunc produces the histogram returned by the seq-th read,
// counting from zero.
type HistogramFunc func(seq int) protocol.HistogramFrame

// Config describes the emulated device.
type Config struct {
	// Model is ModelN2 or ModelN3
	Model protocol.Model

	// Firmware reported by the information string and firmware read.
	// Zero selects 18.2 for the N2 and 1.17 for the N3.
	Firmware protocol.FirmwareVersion

	// ReadyAfter is the number of N3 ready polls answered with 0x00 before
	// the device reports busy-ready
	ReadyAfter int

	// Histogram overrides the synthetic histogram source
	Histogram HistogramFunc

	// Mode is the SPI mode reported by the device. Zero means mode 1.
	Mode spi.Mode

	SerialNumber string
}

type state int

const (
	stateIdle state = iota
	stateRepeat
	stateConfirm
	stateStream
	stateSelector
	stateTrailer
	stateSetPowerSelector
	stateSetPowerValue
)

type entry struct {
	op  protocol.Op
	cmd protocol.Command
}

// Device is an emulated OPC. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	cfg      Config
	layout   protocol.Layout
	commands map[byte]entry
	mode     spi.Mode

	state   state
	current entry
	repeats int
	polls   int
	pending []byte

	fanOn, laserOn bool
	fanPower       byte
	laserPower     byte
	powerSelector  byte

	histograms int
	corrupt    int
	sent       []byte
}

// New returns an emulated device.
func New(cfg Config) (*Device, error) {
	if cfg.Model != protocol.ModelN2 && cfg.Model != protocol.ModelN3 {
		return nil, fmt.Errorf("simulator: unsupported model %v", cfg.Model)
	}
	p, err := protocol.ProfileFor(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Firmware.IsZero() {
		if cfg.Model == protocol.ModelN3 {
			cfg.Firmware = protocol.FirmwareVersion{Major: 1, Minor: 17}
		} else {
			cfg.Firmware = protocol.FirmwareVersion{Major: 18, Minor: 2}
		}
	}
	if cfg.Histogram == nil {
		cfg.Histogram = syntheticHistogram(cfg.Model)
	}
	if cfg.SerialNumber == "" {
		cfg.SerialNumber = fmt.Sprintf("OPC-%v 123456789", cfg.Model)
	}

	d := &Device{
		cfg:      cfg,
		layout:   p.HistogramLayout(cfg.Firmware),
		commands: make(map[byte]entry, len(p.Commands)),
		mode:     spi.Mode1,
		fanPower: 0xFF,
	}
	if cfg.Mode != 0 {
		d.mode = cfg.Mode
	}
	for op, c := range p.Commands {
		d.commands[c.Code] = entry{op: op, cmd: c}
	}
	return d, nil
}

// Mode returns the SPI mode of the emulated bus.
func (d *Device) Mode() spi.Mode {
	return d.mode
}

// Transfer processes every byte of out and returns the device's replies.
func (d *Device) Transfer(out []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	in := make([]byte, len(out))
	for i, b := range out {
		d.sent = append(d.sent, b)
		in[i] = d.step(b)
	}
	return in, nil
}

func (d *Device) step(b byte) byte {
	switch d.state {
	case stateStream:
		r := d.pending[0]
		d.pending = d.pending[1:]
		if len(d.pending) == 0 {
			d.state = stateIdle
		}
		return r

	case stateRepeat:
		if b != d.current.cmd.Code {
			d.state = stateIdle
			return d.step(b)
		}
		d.repeats--
		if d.repeats == 0 {
			d.arm()
		}
		return protocol.StatusReady

	case stateConfirm:
		if b != d.current.cmd.Code {
			d.state = stateIdle
			return 0x00
		}
		d.polls = 0
		d.arm()
		return protocol.StatusReady

	case stateSelector:
		d.state = stateIdle
		d.applySelector(b)
		if d.cfg.Model == protocol.ModelN2 && b == protocol.SelectN2On {
			d.state = stateTrailer
		}
		return protocol.StatusPowerAck

	case stateTrailer:
		d.state = stateIdle
		return 0x00

	case stateSetPowerSelector:
		d.powerSelector = b
		d.state = stateSetPowerValue
		return protocol.CmdSetPower

	case stateSetPowerValue:
		d.state = stateIdle
		if d.powerSelector == protocol.SelectLaserPower {
			d.laserPower = b
		} else {
			d.fanPower = b
		}
		return d.powerSelector
	}

	e, ok := d.commands[b]
	if !ok {
		return 0x00
	}
	d.current = e

	if e.cmd.Handshake {
		if d.polls < d.cfg.ReadyAfter {
			d.polls++
			return 0x00
		}
		d.state = stateConfirm
		return protocol.StatusBusy
	}

	if e.cmd.Repeat > 0 {
		d.repeats = e.cmd.Repeat
		d.state = stateRepeat
		return protocol.StatusReady
	}
	d.arm()
	return protocol.StatusReady
}

// arm moves to the state that follows an accepted command.
func (d *Device) arm() {
	switch d.current.op {
	case protocol.OpPower:
		d.state = stateSelector
	case protocol.OpSetPower:
		d.state = stateSetPowerSelector
	case protocol.OpPing:
		d.state = stateIdle
	default:
		d.pending = d.frame(d.current.op)
		d.state = stateStream
		if len(d.pending) == 0 {
			d.state = stateIdle
		}
	}
}

func (d *Device) applySelector(b byte) {
	if d.cfg.Model == protocol.ModelN3 {
		switch b {
		case protocol.SelectN3FanOn:
			d.fanOn = true
		case protocol.SelectN3FanOff:
			d.fanOn = false
		case protocol.SelectN3LaserOn:
			d.laserOn = true
		case protocol.SelectN3LaserOff:
			d.laserOn = false
		}
		return
	}
	switch b {
	case protocol.SelectN2On:
		d.fanOn, d.laserOn = true, true
	case protocol.SelectN2Off:
		d.fanOn, d.laserOn = false, false
	case protocol.SelectN2LaserOn:
		d.laserOn = true
	case protocol.SelectN2LaserOff:
		d.laserOn = false
	case protocol.SelectN2FanOn:
		d.fanOn = true
	case protocol.SelectN2FanOff:
		d.fanOn = false
	}
}

// frame builds the response frame for a read operation.
func (d *Device) frame(op protocol.Op) []byte {
	switch op {
	case protocol.OpInfoString:
		return padded(d.infoString(), protocol.InfoStringLength)
	case protocol.OpSerialNumber:
		return padded(d.cfg.SerialNumber, protocol.SerialNumberLength)
	case protocol.OpFirmwareVersion:
		return []byte{byte(d.cfg.Firmware.Major), byte(d.cfg.Firmware.Minor)}
	case protocol.OpHistogram:
		return d.histogram()
	case protocol.OpPM:
		h := d.cfg.Histogram(d.histograms)
		d.histograms++
		b := make([]byte, protocol.PMLength)
		protocol.PutFloat32(b[0:], h.PM1)
		protocol.PutFloat32(b[4:], h.PM25)
		protocol.PutFloat32(b[8:], h.PM10)
		return b
	case protocol.OpPotStatus:
		b := []byte{boolByte(d.fanOn), boolByte(d.laserOn), d.fanPower, d.laserPower}
		if d.cfg.Model == protocol.ModelN3 {
			b = append(b, boolByte(d.laserOn), 0x00)
		}
		return b
	case protocol.OpConfig:
		return d.config()
	case protocol.OpConfig2:
		b := make([]byte, protocol.Config2Length)
		binary.LittleEndian.PutUint16(b[0:], 10)
		binary.LittleEndian.PutUint16(b[2:], 6)
		b[4], b[5] = 0, 0
		binary.LittleEndian.PutUint16(b[6:], 61798)
		b[8] = 0
		return b
	}
	return nil
}

func (d *Device) infoString() string {
	if d.cfg.Model == protocol.ModelN3 {
		return fmt.Sprintf("OPC-N3 Iss1.1 FirmwareVer=%d.%da", d.cfg.Firmware.Major, d.cfg.Firmware.Minor)
	}
	return fmt.Sprintf("OPC-N2 FirmwareVer=OPC-%03d.%d", d.cfg.Firmware.Major, d.cfg.Firmware.Minor)
}

func (d *Device) histogram() []byte {
	f := d.cfg.Histogram(d.histograms)
	d.histograms++
	b := protocol.EncodeHistogram(f, d.layout, d.cfg.Firmware)
	if d.corrupt > 0 {
		// bin 0 no longer matches the checksum
		d.corrupt--
		b[0] ^= 0x01
	}
	return b
}

func (d *Device) config() []byte {
	b := make([]byte, protocol.ConfigLength)
	for i := 0; i < 15; i++ {
		adc := protocol.NearestADC(0.38 + float64(i)*1.1)
		binary.LittleEndian.PutUint16(b[2*i:], uint16(adc))
	}
	for i := 0; i < 16; i++ {
		protocol.PutFloat32(b[32+4*i:], float32(i+1)*0.1)
		protocol.PutFloat32(b[96+4*i:], 1.65)
		protocol.PutFloat32(b[160+4*i:], 1.0)
	}
	protocol.PutFloat32(b[224:], 1.0)
	protocol.PutFloat32(b[228:], 3.5)
	b[232] = d.laserPower
	b[233] = d.fanPower
	b[234] = 0x0B
	return b
}

// CorruptNext makes the next n histogram frames fail their checksum.
func (d *Device) CorruptNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrupt = n
}

// Powered reports the fan and laser state.
func (d *Device) Powered() (fan, laser bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fanOn, d.laserOn
}

// Power returns the fan and laser power levels.
func (d *Device) Power() (fan, laser byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fanPower, d.laserPower
}

// Sent returns every byte received so far.
func (d *Device) Sent() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.sent...)
}

// HistogramReads returns the number of histogram or PM frames served.
func (d *Device) HistogramReads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.histograms
}

// syntheticHistogram returns a source whose counts fall off with bin index
// and vary with the read sequence.
func syntheticHistogram(model protocol.Model) HistogramFunc {
	nbins := 16
	if model == protocol.ModelN3 {
		nbins = 24
	}
	return func(seq int) protocol.HistogramFrame {
		bins := make([]uint16, nbins)
		for i := range bins {
			bins[i] = uint16((200 + 7*seq) / (i + 1))
		}
		return protocol.HistogramFrame{
			Bins:        bins,
			MToF:        [4]byte{30, 45, 60, 75},
			Temperature: 215,
			Pressure:    101325,
			PeriodTicks: 12000000,
			Period:      1.4,
			SFR:         3.5,
			Slot:        101325,
			PeriodRaw:   140,
			SFRRaw:      350,
			TempRaw:     25000,
			HumidityRaw: 30000,
			FanRevCount: 10,
			LaserStatus: 600,
			PM1:         1.5,
			PM25:        3.2,
			PM10:        8.75,
		}
	}
}

func padded(s string, n int) []byte {
	if len(s) < n {
		s += strings.Repeat(" ", n-len(s))
	}
	return []byte(s[:n])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
