package vcam

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/util"
)

var (
	// ErrStaleEpoch rejects a frame from an older session instance. Once
	// any frame of a newer session has been presented, earlier sessions'
	// frames can never reach the surface.
	ErrStaleEpoch = errors.New("vcam: frame from a stale session")

	// ErrOutOfOrder rejects a frame whose sequence number does not advance
	// within its session.
	ErrOutOfOrder = errors.New("vcam: frame out of sequence order")

	// ErrFormatMismatch rejects a frame whose geometry differs from the
	// surface format.
	ErrFormatMismatch = errors.New("vcam: frame format mismatch")
)

// SnapshotMeta describes what a Snapshot captured.
type SnapshotMeta struct {
	Seq         uint64    `json:"seq"`
	Epoch       uint64    `json:"epoch"`
	CaptureTime time.Time `json:"capture_time"`
	Placeholder bool      `json:"placeholder"`
}

// WriterStats is a point-in-time snapshot of writer counters.
type WriterStats struct {
	Presented           uint64 `json:"presented"`
	LKGPresents         uint64 `json:"lkg_presents"`
	PlaceholderPresents uint64 `json:"placeholder_presents"`
	RejectedStale       uint64 `json:"rejected_stale"`
	RejectedOrder       uint64 `json:"rejected_order"`
	LastSeq             uint64 `json:"last_seq"`
	LastEpoch           uint64 `json:"last_epoch"`
}

// Writer hands frames to the sink surface and keeps the last-known-good
// frame so output continues across disconnects. All presentation goes
// through the relay worker; Snapshot and Stats may be called from anywhere.
type Writer struct {
	surface Surface
	format  frame.Format
	log     *slog.Logger

	mu sync.Mutex

	// Last-known-good lives outside the buffer pool so it survives session
	// teardown without holding a pool slot across session boundaries.
	lkg     []byte
	lkgMeta SnapshotMeta
	hasLKG  bool

	placeholder []byte

	// Ordering guard state.
	maxEpoch  uint64
	lastSeq   uint64
	presented bool

	stats WriterStats
}

// NewWriter builds a writer for the surface. The surface format is fixed
// for the writer's lifetime.
func NewWriter(surface Surface) *Writer {
	return &Writer{
		surface: surface,
		format:  surface.Format(),
		log:     util.GetLogger().With("component", "vcam"),
		lkg:     make([]byte, surface.Format().FrameBytes()),
	}
}

// Format returns the surface format.
func (w *Writer) Format() frame.Format {
	return w.format
}

// Present publishes one frame to the surface and retains it as the
// last-known-good. Frames must arrive in (Epoch, Seq) order: an older epoch
// is rejected with ErrStaleEpoch, a non-advancing sequence number within
// the current epoch with ErrOutOfOrder. Rejections leave the surface and
// the last-known-good untouched.
func (w *Writer) Present(buf *frame.Buffer) error {
	if buf.Width != w.format.Width || buf.Height != w.format.Height || buf.Pixel != w.format.Pixel {
		return errors.Wrapf(ErrFormatMismatch, "%dx%d %s", buf.Width, buf.Height, buf.Pixel)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if buf.Epoch < w.maxEpoch {
		w.stats.RejectedStale++
		return errors.Wrapf(ErrStaleEpoch, "epoch %d after %d", buf.Epoch, w.maxEpoch)
	}
	if buf.Epoch == w.maxEpoch && w.presented && buf.Seq <= w.lastSeq {
		w.stats.RejectedOrder++
		return errors.Wrapf(ErrOutOfOrder, "seq %d after %d", buf.Seq, w.lastSeq)
	}

	if err := w.surface.Write(buf.Data[:w.format.FrameBytes()]); err != nil {
		return errors.Wrap(err, "sink write failed")
	}

	w.maxEpoch = buf.Epoch
	w.lastSeq = buf.Seq
	w.presented = true

	copy(w.lkg, buf.Data[:w.format.FrameBytes()])
	w.lkgMeta = SnapshotMeta{Seq: buf.Seq, Epoch: buf.Epoch, CaptureTime: buf.CaptureTime}
	w.hasLKG = true

	w.stats.Presented++
	w.stats.LastSeq = buf.Seq
	w.stats.LastEpoch = buf.Epoch
	return nil
}

// PresentLastKnownGood re-publishes the most recent successfully presented
// frame, keeping the source visibly alive while no device is streaming.
// Before any frame has ever been presented it falls back to the
// placeholder, so the surface never shows uninitialized memory.
func (w *Writer) PresentLastKnownGood() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasLKG {
		return w.presentPlaceholderLocked()
	}
	if err := w.surface.Write(w.lkg); err != nil {
		return errors.Wrap(err, "sink write failed")
	}
	w.stats.LKGPresents++
	return nil
}

// PresentPlaceholder publishes the deterministic placeholder frame.
func (w *Writer) PresentPlaceholder() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.presentPlaceholderLocked()
}

func (w *Writer) presentPlaceholderLocked() error {
	if w.placeholder == nil {
		w.placeholder = renderPlaceholder(w.format)
	}
	if err := w.surface.Write(w.placeholder); err != nil {
		return errors.Wrap(err, "sink write failed")
	}
	w.stats.PlaceholderPresents++
	return nil
}

// Snapshot copies out the content the writer last stood behind: the
// last-known-good frame, or the placeholder before any frame arrived.
func (w *Writer) Snapshot() ([]byte, SnapshotMeta) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasLKG {
		if w.placeholder == nil {
			w.placeholder = renderPlaceholder(w.format)
		}
		out := make([]byte, len(w.placeholder))
		copy(out, w.placeholder)
		return out, SnapshotMeta{Placeholder: true}
	}

	out := make([]byte, len(w.lkg))
	copy(out, w.lkg)
	return out, w.lkgMeta
}

// HasLastKnownGood reports whether any frame has ever been presented.
func (w *Writer) HasLastKnownGood() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasLKG
}

// Stats returns a snapshot of the writer counters.
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// renderPlaceholder draws the frame shown before any device has ever
// streamed: dark slate with a faint grid, fully formed and clearly not a
// camera image.
func renderPlaceholder(f frame.Format) []byte {
	const (
		base = 0x20
		grid = 0x38
		cell = 48
	)

	out := make([]byte, f.FrameBytes())
	stride := f.Stride()
	for y := 0; y < f.Height; y++ {
		row := out[y*stride : (y+1)*stride]
		onRow := y%cell == 0
		for x := 0; x < f.Width; x++ {
			v := byte(base)
			if onRow || x%cell == 0 {
				v = grid
			}
			row[x*3+0] = v
			row[x*3+1] = v
			row[x*3+2] = v
		}
	}
	return out
}
