package frame

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolFormat = Format{Width: 64, Height: 48, Pixel: FormatBGR24, FPS: 30}

func TestNewPool(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		format  Format
		wantErr bool
	}{
		{"valid", 4, poolFormat, false},
		{"single buffer", 1, poolFormat, false},
		{"zero size", 0, poolFormat, true},
		{"negative size", -1, poolFormat, true},
		{"invalid format", 4, Format{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPool(tt.size, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			stats := p.Stats()
			assert.Equal(t, tt.size, stats.Size)
			assert.Equal(t, tt.size, stats.Free)
			assert.Equal(t, tt.format, p.Format())
		})
	}
}

func TestPoolAcquireRelease(t *testing.T) {
	p, err := NewPool(2, poolFormat)
	require.NoError(t, err)

	b, err := p.Acquire(0)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Len(t, b.Data, poolFormat.FrameBytes())
	assert.Equal(t, poolFormat.Width, b.Width)
	assert.Equal(t, 1, p.Stats().Free)

	p.Release(b)
	stats := p.Stats()
	assert.Equal(t, 2, stats.Free)
	assert.Equal(t, uint64(1), stats.Acquires)
	assert.Equal(t, uint64(1), stats.Releases)
}

func TestPoolExhaustion(t *testing.T) {
	p, err := NewPool(2, poolFormat)
	require.NoError(t, err)

	a, err := p.Acquire(0)
	require.NoError(t, err)
	b, err := p.Acquire(0)
	require.NoError(t, err)

	// The pool is empty: the bounded wait must elapse, then report
	// exhaustion instead of blocking.
	start := time.Now()
	_, err = p.Acquire(30 * time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrExhausted)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "Acquire should wait out the bound")
	assert.Less(t, elapsed, 500*time.Millisecond, "Acquire must not block past the bound")
	assert.Equal(t, uint64(1), p.Stats().Exhaustions)

	p.Release(a)
	p.Release(b)
}

func TestPoolAcquireZeroWaitFailsFast(t *testing.T) {
	p, err := NewPool(1, poolFormat)
	require.NoError(t, err)

	b, err := p.Acquire(0)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(0)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	p.Release(b)
}

func TestPoolAcquireWaitsForRelease(t *testing.T) {
	p, err := NewPool(1, poolFormat)
	require.NoError(t, err)

	held, err := p.Acquire(0)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Release(held)
	}()

	b, err := p.Acquire(500 * time.Millisecond)
	require.NoError(t, err, "Acquire should pick up the buffer freed during the wait")
	p.Release(b)
}

func TestPoolDoubleReleaseIgnored(t *testing.T) {
	p, err := NewPool(2, poolFormat)
	require.NoError(t, err)

	b, err := p.Acquire(0)
	require.NoError(t, err)

	p.Release(b)
	p.Release(b)

	stats := p.Stats()
	assert.Equal(t, 2, stats.Free, "double release must not grow the free list")
	assert.Equal(t, uint64(1), stats.Releases)
}

func TestPoolReleaseForeignBufferIgnored(t *testing.T) {
	p1, err := NewPool(1, poolFormat)
	require.NoError(t, err)
	p2, err := NewPool(1, poolFormat)
	require.NoError(t, err)

	b, err := p2.Acquire(0)
	require.NoError(t, err)

	p1.Release(b)
	assert.Equal(t, 1, p1.Stats().Free)
	assert.Equal(t, uint64(0), p1.Stats().Releases)

	p1.Release(nil)
	assert.Equal(t, 1, p1.Stats().Free)
}

func TestPoolReleaseClearsStampedMetadata(t *testing.T) {
	p, err := NewPool(1, poolFormat)
	require.NoError(t, err)

	b, err := p.Acquire(0)
	require.NoError(t, err)
	b.Seq = 42
	b.Epoch = 7
	b.TraceID = "trace-1"
	p.Release(b)

	b, err = p.Acquire(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), b.Seq)
	assert.Equal(t, uint64(0), b.Epoch)
	assert.Empty(t, b.TraceID)
	p.Release(b)
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	p, err := NewPool(4, poolFormat)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b, err := p.Acquire(50 * time.Millisecond)
				if err != nil {
					continue
				}
				b.Seq = uint64(j)
				p.Release(b)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, 4, stats.Free, "every buffer should be back in the pool")
	assert.Equal(t, stats.Acquires, stats.Releases)
}
