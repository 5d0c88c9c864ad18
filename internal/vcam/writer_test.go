package vcam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakbridge/oakbridge/internal/frame"
)

func presentable(f frame.Format, seq, epoch uint64, fill byte) *frame.Buffer {
	b := &frame.Buffer{Data: filledFrame(f, fill), Seq: seq, Epoch: epoch, CaptureTime: time.Now()}
	b.SetFormat(f)
	return b
}

func readSurface(t *testing.T, s *MemorySurface) []byte {
	t.Helper()
	dst := make([]byte, s.Format().FrameBytes())
	ok, err := s.Read(dst)
	require.NoError(t, err)
	require.True(t, ok, "surface should hold a frame")
	return dst
}

func TestPresentPublishesAndRetainsLKG(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)
	require.False(t, w.HasLastKnownGood())

	require.NoError(t, w.Present(presentable(surfaceFormat, 0, 1, 0x55)))

	assert.Equal(t, byte(0x55), readSurface(t, s)[0])
	assert.True(t, w.HasLastKnownGood())

	stats := w.Stats()
	assert.Equal(t, uint64(1), stats.Presented)
	assert.Equal(t, uint64(0), stats.LastSeq)
	assert.Equal(t, uint64(1), stats.LastEpoch)
}

func TestPresentOrderingGuard(t *testing.T) {
	tests := []struct {
		name    string
		first   *frame.Buffer
		second  *frame.Buffer
		wantErr error
	}{
		{
			name:   "advancing seq accepted",
			first:  presentable(surfaceFormat, 3, 1, 0x01),
			second: presentable(surfaceFormat, 4, 1, 0x02),
		},
		{
			name:   "seq gap accepted",
			first:  presentable(surfaceFormat, 0, 1, 0x01),
			second: presentable(surfaceFormat, 9, 1, 0x02),
		},
		{
			name:    "repeated seq rejected",
			first:   presentable(surfaceFormat, 5, 1, 0x01),
			second:  presentable(surfaceFormat, 5, 1, 0x02),
			wantErr: ErrOutOfOrder,
		},
		{
			name:    "regressing seq rejected",
			first:   presentable(surfaceFormat, 5, 1, 0x01),
			second:  presentable(surfaceFormat, 4, 1, 0x02),
			wantErr: ErrOutOfOrder,
		},
		{
			name:    "older epoch rejected",
			first:   presentable(surfaceFormat, 0, 2, 0x01),
			second:  presentable(surfaceFormat, 100, 1, 0x02),
			wantErr: ErrStaleEpoch,
		},
		{
			name:   "newer epoch restarts seq",
			first:  presentable(surfaceFormat, 50, 1, 0x01),
			second: presentable(surfaceFormat, 0, 2, 0x02),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemorySurface(surfaceFormat)
			w := NewWriter(s)
			require.NoError(t, w.Present(tt.first))

			err := w.Present(tt.second)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, byte(0x02), readSurface(t, s)[0])
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			// Rejected frames leave both the surface and the LKG alone.
			assert.Equal(t, byte(0x01), readSurface(t, s)[0])
			snap, _ := w.Snapshot()
			assert.Equal(t, byte(0x01), snap[0])
		})
	}
}

func TestPresentRejectionCounters(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	require.NoError(t, w.Present(presentable(surfaceFormat, 1, 2, 0x01)))
	require.Error(t, w.Present(presentable(surfaceFormat, 1, 2, 0x02)))
	require.Error(t, w.Present(presentable(surfaceFormat, 0, 1, 0x03)))

	stats := w.Stats()
	assert.Equal(t, uint64(1), stats.RejectedOrder)
	assert.Equal(t, uint64(1), stats.RejectedStale)
	assert.Equal(t, uint64(1), stats.Presented)
}

func TestPresentFormatMismatch(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	other := frame.Format{Width: 32, Height: 24, Pixel: frame.FormatBGR24, FPS: 30}
	err := w.Present(presentable(other, 0, 1, 0x01))
	require.ErrorIs(t, err, ErrFormatMismatch)
}

func TestPresentLastKnownGoodFallsBackToPlaceholder(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	require.NoError(t, w.PresentLastKnownGood())

	// No frame has ever been presented, so the surface shows the
	// placeholder, never uninitialized memory.
	content := readSurface(t, s)
	assert.Equal(t, renderPlaceholder(surfaceFormat), content)
	assert.Equal(t, uint64(1), w.Stats().PlaceholderPresents)
	assert.Equal(t, uint64(0), w.Stats().LKGPresents)
}

func TestPresentLastKnownGoodRepublishes(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	require.NoError(t, w.Present(presentable(surfaceFormat, 0, 1, 0x77)))
	require.NoError(t, s.Write(filledFrame(surfaceFormat, 0x00)))

	require.NoError(t, w.PresentLastKnownGood())
	assert.Equal(t, byte(0x77), readSurface(t, s)[0])
	assert.Equal(t, uint64(1), w.Stats().LKGPresents)
}

func TestLKGSurvivesBufferReuse(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	buf := presentable(surfaceFormat, 0, 1, 0x42)
	require.NoError(t, w.Present(buf))

	// The relay hands the buffer back to the pool after presenting; a
	// later session scribbling over it must not change the retained frame.
	for i := range buf.Data {
		buf.Data[i] = 0xFF
	}

	require.NoError(t, w.PresentLastKnownGood())
	assert.Equal(t, byte(0x42), readSurface(t, s)[0])
}

func TestPresentPlaceholder(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	require.NoError(t, w.Present(presentable(surfaceFormat, 0, 1, 0x11)))
	require.NoError(t, w.PresentPlaceholder())

	assert.Equal(t, renderPlaceholder(surfaceFormat), readSurface(t, s))
	assert.True(t, w.HasLastKnownGood(), "the placeholder does not displace the LKG")
}

func TestPlaceholderIsDeterministicAndFormed(t *testing.T) {
	a := renderPlaceholder(surfaceFormat)
	b := renderPlaceholder(surfaceFormat)
	assert.Equal(t, a, b)
	assert.Len(t, a, surfaceFormat.FrameBytes())

	// Fully formed content: base tone everywhere, grid lines brighter.
	distinct := map[byte]bool{}
	for _, v := range a {
		distinct[v] = true
		assert.NotZero(t, v, "no uninitialized black regions")
	}
	assert.Len(t, distinct, 2, "placeholder is base tone plus grid")
}

func TestSnapshot(t *testing.T) {
	s := NewMemorySurface(surfaceFormat)
	w := NewWriter(s)

	data, meta := w.Snapshot()
	assert.True(t, meta.Placeholder)
	assert.Equal(t, renderPlaceholder(surfaceFormat), data)

	capture := time.Now().Add(-time.Second)
	buf := presentable(surfaceFormat, 7, 2, 0x33)
	buf.CaptureTime = capture
	require.NoError(t, w.Present(buf))

	data, meta = w.Snapshot()
	assert.False(t, meta.Placeholder)
	assert.Equal(t, uint64(7), meta.Seq)
	assert.Equal(t, uint64(2), meta.Epoch)
	assert.Equal(t, capture, meta.CaptureTime)
	assert.Equal(t, byte(0x33), data[0])

	// The snapshot is a copy, not a view into the retained frame.
	data[0] = 0x00
	again, _ := w.Snapshot()
	assert.Equal(t, byte(0x33), again[0])
}
