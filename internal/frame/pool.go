package frame

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrExhausted is returned by Acquire when no slot frees up within the
// bounded wait. The caller is expected to skip the current cycle; this is
// the relay's drop point, not a failure.
var ErrExhausted = errors.New("frame: buffer pool exhausted")

// Pool is a fixed set of reusable frame buffers allocated once at startup.
// It is the only resource shared between the frame path and the control
// path, so acquire/release keep their critical sections to a single slot
// hand-off.
type Pool struct {
	free   chan *Buffer
	size   int
	format Format

	mu sync.Mutex // guards lease flags on release

	acquires    atomic.Uint64
	exhaustions atomic.Uint64
	released    atomic.Uint64
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	Size        int    `json:"size"`
	Free        int    `json:"free"`
	Acquires    uint64 `json:"acquires"`
	Exhaustions uint64 `json:"exhaustions"`
	Releases    uint64 `json:"releases"`
}

// NewPool allocates size buffers of the given format up front. Failing to
// build the pool is the one startup condition the process treats as fatal.
func NewPool(size int, f Format) (*Pool, error) {
	if size <= 0 {
		return nil, errors.Errorf("frame: pool size must be positive, got %d", size)
	}
	if !f.Valid() {
		return nil, errors.Errorf("frame: invalid stream format %s", f)
	}

	p := &Pool{
		free:   make(chan *Buffer, size),
		size:   size,
		format: f,
	}
	for i := 0; i < size; i++ {
		b := &Buffer{Data: make([]byte, f.FrameBytes()), pool: p}
		b.SetFormat(f)
		p.free <- b
	}
	return p, nil
}

// Format returns the stream format the pool was sized for.
func (p *Pool) Format() Format {
	return p.format
}

// Acquire leases a free buffer, waiting up to maxWait for one to appear.
// Returns ErrExhausted after the bounded wait; never blocks longer.
func (p *Pool) Acquire(maxWait time.Duration) (*Buffer, error) {
	select {
	case b := <-p.free:
		p.lease(b)
		return b, nil
	default:
	}

	if maxWait <= 0 {
		p.exhaustions.Add(1)
		return nil, ErrExhausted
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case b := <-p.free:
		p.lease(b)
		return b, nil
	case <-timer.C:
		p.exhaustions.Add(1)
		return nil, ErrExhausted
	}
}

// Release returns a leased buffer to the free list. Releasing a buffer that
// is not leased (or belongs to another pool) is ignored; the lease flag
// keeps a double release from corrupting the free list.
func (p *Pool) Release(b *Buffer) {
	if b == nil || b.pool != p {
		return
	}
	p.mu.Lock()
	if !b.leased {
		p.mu.Unlock()
		return
	}
	b.leased = false
	p.mu.Unlock()

	b.Seq = 0
	b.Epoch = 0
	b.TraceID = ""
	p.released.Add(1)
	p.free <- b
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Size:        p.size,
		Free:        len(p.free),
		Acquires:    p.acquires.Load(),
		Exhaustions: p.exhaustions.Load(),
		Releases:    p.released.Load(),
	}
}

func (p *Pool) lease(b *Buffer) {
	p.mu.Lock()
	b.leased = true
	p.mu.Unlock()
	p.acquires.Add(1)
}
