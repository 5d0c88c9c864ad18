// Package vcam adapts relay frames to the virtual camera sink: an
// externally-owned consumption surface that third-party applications read
// as a standard video source.
package vcam

import "github.com/oakbridge/oakbridge/internal/frame"

// Surface is the consumption boundary of the virtual camera driver. The
// surface owns presentation; the bridge only hands over complete frames.
//
// Write must behave as a complete-buffer swap: a concurrent reader sees
// either the previous frame or the new one, never a partial write. The
// buffer passed to Write is valid only for the duration of the call and is
// never mutated by the bridge afterwards.
type Surface interface {
	// Format returns the fixed geometry and rate the surface accepts.
	Format() frame.Format

	// Write publishes one complete frame.
	Write(data []byte) error

	Close() error
}
