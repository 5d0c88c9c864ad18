package vcam

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
)

// ErrSurfaceClosed is returned by operations on a closed surface.
var ErrSurfaceClosed = errors.New("vcam: surface closed")

// MemorySurface is a double-buffered in-process Surface. Writers fill the
// back buffer and flip; readers copy the front buffer. The flip happens
// under the same short lock as the copy, so a read observes exactly one
// complete frame, which is the swap contract a driver-backed surface
// provides through its shared mapping.
//
// It serves as the default sink when no driver is attached, and as the
// observable surface in tests.
type MemorySurface struct {
	format frame.Format

	mu    sync.Mutex
	bufs  [2][]byte
	front int
	ever  bool

	writes atomic.Uint64
	closed atomic.Bool
}

// NewMemorySurface allocates both buffers for the fixed format.
func NewMemorySurface(f frame.Format) *MemorySurface {
	s := &MemorySurface{format: f}
	s.bufs[0] = make([]byte, f.FrameBytes())
	s.bufs[1] = make([]byte, f.FrameBytes())
	return s
}

// Format returns the fixed format the surface accepts.
func (s *MemorySurface) Format() frame.Format {
	return s.format
}

// Write copies data into the back buffer and flips it to the front.
func (s *MemorySurface) Write(data []byte) error {
	if s.closed.Load() {
		return ErrSurfaceClosed
	}
	if len(data) != s.format.FrameBytes() {
		return errors.Errorf("vcam: frame is %d bytes, surface takes %d", len(data), s.format.FrameBytes())
	}

	s.mu.Lock()
	back := 1 - s.front
	copy(s.bufs[back], data)
	s.front = back
	s.ever = true
	s.mu.Unlock()

	s.writes.Add(1)
	return nil
}

// Read copies the front buffer into dst. Returns false before the first
// Write, when the surface holds no meaningful frame.
func (s *MemorySurface) Read(dst []byte) (bool, error) {
	if s.closed.Load() {
		return false, ErrSurfaceClosed
	}
	if len(dst) < s.format.FrameBytes() {
		return false, errors.Errorf("vcam: destination holds %d bytes, want %d", len(dst), s.format.FrameBytes())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ever {
		return false, nil
	}
	copy(dst, s.bufs[s.front])
	return true, nil
}

// Writes returns how many frames have been published.
func (s *MemorySurface) Writes() uint64 {
	return s.writes.Load()
}

func (s *MemorySurface) Close() error {
	s.closed.Store(true)
	return nil
}
