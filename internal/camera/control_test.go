package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetFocusClamps(t *testing.T) {
	tests := []struct {
		name string
		pos  int
		want int
	}{
		{"below range", -5, FocusMin},
		{"at minimum", FocusMin, FocusMin},
		{"in range", 128, 128},
		{"at maximum", FocusMax, FocusMax},
		{"above range", 300, FocusMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSetFocus(tt.pos).Position)
		})
	}
}

func TestNewSetExposureClamps(t *testing.T) {
	tests := []struct {
		name       string
		timeUs     int
		iso        int
		wantTimeUs int
		wantISO    int
	}{
		{"both in range", 5000, 400, 5000, 400},
		{"time below range", 0, 400, ExposureMinUs, 400},
		{"time above range", 50000, 400, ExposureMaxUs, 400},
		{"iso below range", 5000, 50, 5000, ISOMin},
		{"iso above range", 5000, 6400, 5000, ISOMax},
		{"both out of range", -1, 100000, ExposureMinUs, ISOMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewSetExposure(tt.timeUs, tt.iso)
			assert.Equal(t, tt.wantTimeUs, cmd.TimeUs)
			assert.Equal(t, tt.wantISO, cmd.ISO)
		})
	}
}

func TestNewSetWhiteBalanceClamps(t *testing.T) {
	tests := []struct {
		name   string
		kelvin int
		want   int
	}{
		{"below range", 200, WhiteBalanceMinK},
		{"daylight", 6500, 6500},
		{"above range", 20000, WhiteBalanceMaxK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSetWhiteBalance(tt.kelvin).Kelvin)
		})
	}
}

func TestCommandStrings(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"focus", NewSetFocus(128), "set-focus position=128"},
		{"exposure", NewSetExposure(5000, 400), "set-exposure time_us=5000 iso=400"},
		{"white balance", NewSetWhiteBalance(5600), "set-white-balance kelvin=5600"},
		{"autofocus trigger", TriggerAutofocus{}, "trigger-autofocus"},
		{"auto focus on", SetAutoFocus{Enabled: true}, "set-auto-focus enabled=true"},
		{"auto exposure off", SetAutoExposure{Enabled: false}, "set-auto-exposure enabled=false"},
		{"link speed query", QueryLinkSpeed{}, "query-link-speed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestParseLinkSpeed(t *testing.T) {
	tests := []struct {
		in   string
		want LinkSpeed
	}{
		{"usb2", LinkSpeedUSB2},
		{"usb3", LinkSpeedUSB3},
		{"USB3", LinkSpeedUSB3},
		{" usb2 ", LinkSpeedUSB2},
		{"", LinkSpeedUnknown},
		{"thunderbolt", LinkSpeedUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLinkSpeed(tt.in))
		})
	}
}

func TestLinkSpeedThroughput(t *testing.T) {
	assert.Equal(t, 35<<20, LinkSpeedUSB2.Throughput())
	assert.Equal(t, 350<<20, LinkSpeedUSB3.Throughput())
	assert.Equal(t, 0, LinkSpeedUnknown.Throughput())
}

func TestJSONEncodingOfLinkEnums(t *testing.T) {
	speed, err := LinkSpeedUSB3.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"usb3"`, string(speed))

	mode, err := EncodingMJPEG.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"mjpeg"`, string(mode))
}
