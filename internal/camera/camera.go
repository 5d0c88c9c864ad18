// Package camera models the capture device boundary: discovery, the opaque
// link to one physical device, and the session that owns a link's lifecycle
// from open to close.
//
// The wire protocol of the link is out of scope here. Anything that can
// enumerate devices and move frames and control writes across implements
// Provider and Link; the in-tree emulated device is one such implementation.
package camera

import (
	"context"
	"strings"
	"time"

	"github.com/oakbridge/oakbridge/internal/frame"
)

// LinkSpeed is the discrete class of the physical connection, queried from
// the device after binding. It drives the one-time encoding decision.
type LinkSpeed int

const (
	LinkSpeedUnknown LinkSpeed = iota
	LinkSpeedUSB2
	LinkSpeedUSB3
)

func (s LinkSpeed) String() string {
	switch s {
	case LinkSpeedUSB2:
		return "usb2"
	case LinkSpeedUSB3:
		return "usb3"
	default:
		return "unknown"
	}
}

func (s LinkSpeed) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Throughput returns the nominal sustained payload rate of the link class in
// bytes per second. High-speed USB moves ~35 MiB/s of isochronous payload in
// practice; SuperSpeed around ten times that.
func (s LinkSpeed) Throughput() int {
	switch s {
	case LinkSpeedUSB2:
		return 35 << 20
	case LinkSpeedUSB3:
		return 350 << 20
	default:
		return 0
	}
}

// ParseLinkSpeed maps a config string to a link class.
func ParseLinkSpeed(s string) LinkSpeed {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usb2":
		return LinkSpeedUSB2
	case "usb3":
		return LinkSpeedUSB3
	default:
		return LinkSpeedUnknown
	}
}

// EncodingMode selects what the device puts on the wire. Raw is interleaved
// BGR straight from the on-device ISP; MJPEG is the compressed fallback for
// links that cannot sustain raw delivery.
type EncodingMode int

const (
	EncodingRaw EncodingMode = iota
	EncodingMJPEG
)

func (m EncodingMode) String() string {
	switch m {
	case EncodingMJPEG:
		return "mjpeg"
	default:
		return "raw"
	}
}

func (m EncodingMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// DeviceInfo identifies one discoverable capture device.
type DeviceInfo struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Speed LinkSpeed `json:"speed"`
}

// StreamConfig is what open pushes down to the device before the first
// frame: output geometry and encoding. The device's own pipeline performs
// the color conversion so the host receives sink-ready BGR in raw mode.
type StreamConfig struct {
	Format   frame.Format
	Encoding EncodingMode
}

// ReadInfo describes one frame delivered by Link.ReadFrame.
type ReadInfo struct {
	// Bytes is the payload length written into the caller's buffer. Equal to
	// the frame size in raw mode; the compressed length in MJPEG mode.
	Bytes int
	// CaptureTime is the device-side capture timestamp.
	CaptureTime time.Time
}

// Provider enumerates capture devices and opens links to them.
type Provider interface {
	// Discover lists currently attached devices. An empty slice means none;
	// only link-level failures return an error.
	Discover(ctx context.Context) ([]DeviceInfo, error)

	// Open binds the identified device and returns an exclusive link to it.
	Open(ctx context.Context, id string) (Link, error)
}

// Link is one bound connection to a capture device. Implementations must
// make Close unblock an in-flight ReadFrame.
type Link interface {
	// Info returns the identity of the bound device.
	Info() DeviceInfo

	// Speed reports the negotiated link class.
	Speed() (LinkSpeed, error)

	// Configure pushes the stream configuration to the device. Must be
	// called before the first ReadFrame and not after it.
	Configure(cfg StreamConfig) error

	// ReadFrame blocks up to timeout for the next frame and writes its
	// payload into buf. Returns ErrPullTimeout when no frame arrived in
	// time, ErrLinkLost when the device went away, ErrSessionClosed after
	// Close.
	ReadFrame(buf []byte, timeout time.Duration) (ReadInfo, error)

	// WriteControl applies one control command on the device. The write is
	// acknowledged or times out internally; it never blocks unbounded.
	WriteControl(cmd Command) error

	Close() error
}
