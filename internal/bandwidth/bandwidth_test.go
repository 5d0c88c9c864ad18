package bandwidth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
)

func format(w, h, fps int) frame.Format {
	return frame.Format{Width: w, Height: h, Pixel: frame.FormatBGR24, FPS: fps}
}

func TestModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		format   frame.Format
		headroom float64
		speed    camera.LinkSpeed
		want     camera.EncodingMode
	}{
		{
			// 1080p30 raw needs ~178 MiB/s; a SuperSpeed link has ~262
			// MiB/s usable at default headroom.
			name:   "1080p30 on usb3",
			format: format(1920, 1080, 30),
			speed:  camera.LinkSpeedUSB3,
			want:   camera.EncodingRaw,
		},
		{
			name:   "1080p30 on usb2",
			format: format(1920, 1080, 30),
			speed:  camera.LinkSpeedUSB2,
			want:   camera.EncodingMJPEG,
		},
		{
			// Doubling the rate pushes 1080p past even usb3.
			name:   "1080p60 on usb3",
			format: format(1920, 1080, 60),
			speed:  camera.LinkSpeedUSB3,
			want:   camera.EncodingMJPEG,
		},
		{
			name:   "small stream fits usb2 raw",
			format: format(320, 240, 30),
			speed:  camera.LinkSpeedUSB2,
			want:   camera.EncodingRaw,
		},
		{
			name:   "unknown link class is treated as insufficient",
			format: format(320, 240, 30),
			speed:  camera.LinkSpeedUnknown,
			want:   camera.EncodingMJPEG,
		},
		{
			// 1024x640@14 raw is exactly the usable usb2 rate; a link that
			// just barely carries the stream still runs raw.
			name:   "exact fit runs raw",
			format: format(1024, 640, 14),
			speed:  camera.LinkSpeedUSB2,
			want:   camera.EncodingRaw,
		},
		{
			name:     "tight headroom forces compression",
			format:   format(1920, 1080, 30),
			headroom: 0.4,
			speed:    camera.LinkSpeedUSB3,
			want:     camera.EncodingMJPEG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.format, tt.headroom)
			assert.Equal(t, tt.want, a.Mode(tt.speed))
		})
	}
}

func TestHeadroomFallback(t *testing.T) {
	// 1080p30 on usb3 passes at the default headroom but not at 0.5, so
	// the outcome shows which headroom was applied.
	f := format(1920, 1080, 30)

	assert.Equal(t, camera.EncodingRaw, New(f, 0).Mode(camera.LinkSpeedUSB3))
	assert.Equal(t, camera.EncodingRaw, New(f, -1).Mode(camera.LinkSpeedUSB3))
	assert.Equal(t, camera.EncodingRaw, New(f, 1.5).Mode(camera.LinkSpeedUSB3))
	assert.Equal(t, camera.EncodingMJPEG, New(f, 0.5).Mode(camera.LinkSpeedUSB3))
}

func TestModeIsDeterministic(t *testing.T) {
	a := New(format(1920, 1080, 30), 0)
	first := a.Mode(camera.LinkSpeedUSB2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Mode(camera.LinkSpeedUSB2))
	}
}
