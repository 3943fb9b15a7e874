package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInfoStringFirmware(t *testing.T) {
	tests := []struct {
		name   string
		info   string
		want   FirmwareVersion
		wantOK bool
	}{
		{name: "N2 with minor", info: "OPC-N2 FirmwareVer=OPC-018.2....................BD", want: FirmwareVersion{Major: 18, Minor: 2}, wantOK: true},
		{name: "major only", info: "OPC-N2 FirmwareVer=OPC-016..........", want: FirmwareVersion{Major: 16}, wantOK: true},
		{name: "last group wins", info: "OPC-N3 123456 FirmwareVer=017.1", want: FirmwareVersion{Major: 17, Minor: 1}, wantOK: true},
		{name: "garbage", info: "\xff\xff\xff\xff", wantOK: false},
		{name: "empty", info: "", wantOK: false},
		{name: "zero version", info: "000.0", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInfoStringFirmware(tt.info)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFirmwareVersion(t *testing.T) {
	v := FirmwareVersion{Major: 18, Minor: 2}
	assert.Equal(t, 18.2, v.Version())
	assert.Equal(t, "18.2", v.String())
	assert.True(t, v.AtLeast(18, 0))
	assert.True(t, v.AtLeast(17, 9))
	assert.False(t, v.AtLeast(18, 3))
	assert.False(t, FirmwareVersion{Major: 17, Minor: 9}.AtLeast(18, 0))
	assert.False(t, v.IsZero())
	assert.True(t, FirmwareVersion{}.IsZero())
}

func TestRange(t *testing.T) {
	r := Range{Min: 14, Max: 18}
	assert.True(t, r.Contains(FirmwareVersion{Major: 14}))
	assert.True(t, r.Contains(FirmwareVersion{Major: 18, Minor: 9}))
	assert.False(t, r.Contains(FirmwareVersion{Major: 13, Minor: 9}))
	assert.False(t, r.Contains(FirmwareVersion{Major: 19}))
	assert.Equal(t, "14-18", r.String())
}
