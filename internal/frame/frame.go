// Package frame defines the frame buffer format shared by the capture and
// sink sides, and the fixed pool the relay draws its buffers from.
package frame

import (
	"fmt"
	"time"
)

// PixelFormat identifies the in-memory layout of a frame buffer.
type PixelFormat int

const (
	// FormatBGR24 is interleaved 8-bit BGR, 3 bytes per pixel, no row padding.
	// It is the only format the sink surface accepts.
	FormatBGR24 PixelFormat = iota
)

// BytesPerPixel returns the per-pixel byte count of the format.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case FormatBGR24:
		return 3
	default:
		return 0
	}
}

func (p PixelFormat) String() string {
	switch p {
	case FormatBGR24:
		return "BGR24"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Format describes the geometry and rate of a frame stream.
type Format struct {
	Width  int
	Height int
	Pixel  PixelFormat
	FPS    int
}

// Stride returns the byte length of one row.
func (f Format) Stride() int {
	return f.Width * f.Pixel.BytesPerPixel()
}

// FrameBytes returns the byte length of one complete frame.
func (f Format) FrameBytes() int {
	return f.Stride() * f.Height
}

// Interval returns the nominal time between frames.
func (f Format) Interval() time.Duration {
	if f.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(f.FPS)
}

// Valid reports whether the format describes a deliverable stream.
func (f Format) Valid() bool {
	return f.Width > 0 && f.Height > 0 && f.FPS > 0 && f.Pixel.BytesPerPixel() > 0
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s @%d", f.Width, f.Height, f.Pixel, f.FPS)
}

// Buffer is one pooled frame slot plus the metadata stamped by the device
// session on each pull.
//
// Ownership is exclusive: exactly one stage (pool, relay, or sink writer)
// holds a buffer at any instant. The relay releases it back to the pool only
// after the sink writer has finished copying out of it.
type Buffer struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Pixel  PixelFormat

	// Seq is monotonically increasing per device session, starting at 0.
	// Epoch identifies the session instance; a reconnect bumps it, so the
	// pair (Epoch, Seq) is totally ordered across reconnects.
	Seq   uint64
	Epoch uint64

	CaptureTime time.Time
	TraceID     string

	leased bool
	pool   *Pool
}

// SetFormat stamps the buffer geometry from a stream format.
func (b *Buffer) SetFormat(f Format) {
	b.Width = f.Width
	b.Height = f.Height
	b.Stride = f.Stride()
	b.Pixel = f.Pixel
}
