// Package control carries commands from the control surface into the
// device session without contending with the frame path.
package control

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/camera"
)

// ErrBusy is returned by Submit when the channel is at capacity. The
// submission is refused outright rather than queued or silently dropped, so
// the control surface can show a transient busy indication instead of
// losing the user's setting.
var ErrBusy = errors.New("control: channel busy")

// DefaultCapacity bounds the channel when no capacity is configured.
const DefaultCapacity = 16

// Stats is a point-in-time snapshot of channel counters.
type Stats struct {
	Capacity  int    `json:"capacity"`
	Pending   int    `json:"pending"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Delivered uint64 `json:"delivered"`
}

// Channel is the bounded conduit between the control surface and the
// device session. Commands come out in submission order and each is
// consumed exactly once; the relay drains the channel between frame pulls.
type Channel struct {
	ch chan camera.Command

	submitted atomic.Uint64
	rejected  atomic.Uint64
	delivered atomic.Uint64
}

// NewChannel builds a channel bounded at capacity. Non-positive capacity
// falls back to DefaultCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{ch: make(chan camera.Command, capacity)}
}

// Submit enqueues one command without blocking. Returns ErrBusy when the
// channel is full.
func (c *Channel) Submit(cmd camera.Command) error {
	select {
	case c.ch <- cmd:
		c.submitted.Add(1)
		return nil
	default:
		c.rejected.Add(1)
		return ErrBusy
	}
}

// TryRecv dequeues the oldest pending command without blocking.
func (c *Channel) TryRecv() (camera.Command, bool) {
	select {
	case cmd := <-c.ch:
		c.delivered.Add(1)
		return cmd, true
	default:
		return nil, false
	}
}

// Pending returns the number of queued commands.
func (c *Channel) Pending() int {
	return len(c.ch)
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Capacity:  cap(c.ch),
		Pending:   len(c.ch),
		Submitted: c.submitted.Load(),
		Rejected:  c.rejected.Load(),
		Delivered: c.delivered.Load(),
	}
}
