// Package relay runs the frame path: one dedicated worker pulling frames
// from the device session and presenting them to the sink writer, dropping
// rather than buffering whenever the pipeline cannot keep up.
//
// Backlog converts directly into glass-to-glass latency, so the worker
// never holds more than one frame in flight: a slightly stale, low-latency
// stream beats an accurate but delayed one.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/control"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/util"
	"github.com/oakbridge/oakbridge/internal/vcam"
)

// EventKind tags pipeline events delivered to the supervisor.
type EventKind int

const (
	// EventFirstFrame fires on the first successful pull of a session.
	EventFirstFrame EventKind = iota
	// EventDegraded fires when the consecutive pull-timeout streak reaches
	// the configured threshold. Once per streak.
	EventDegraded
	// EventRecovered fires when a pull succeeds after EventDegraded.
	EventRecovered
	// EventLinkLost fires when the session reports a dead link. The worker
	// has already detached and switched to holding output.
	EventLinkLost
	// EventControlApplied and EventControlFailed report control command
	// outcomes for the control surface. Best-effort delivery.
	EventControlApplied
	EventControlFailed
)

func (k EventKind) String() string {
	switch k {
	case EventFirstFrame:
		return "first-frame"
	case EventDegraded:
		return "degraded"
	case EventRecovered:
		return "recovered"
	case EventLinkLost:
		return "link-lost"
	case EventControlApplied:
		return "control-applied"
	case EventControlFailed:
		return "control-failed"
	default:
		return "unknown"
	}
}

// Event is one pipeline occurrence the supervisor reacts to.
type Event struct {
	Kind    EventKind
	Epoch   uint64
	Streak  int
	Command string
	Err     error
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Relayed        uint64    `json:"relayed"`
	Timeouts       uint64    `json:"timeouts"`
	DroppedPool    uint64    `json:"dropped_pool"`
	DroppedDecode  uint64    `json:"dropped_decode"`
	SinkErrors     uint64    `json:"sink_errors"`
	ControlApplied uint64    `json:"control_applied"`
	ControlFailed  uint64    `json:"control_failed"`
	TimeoutStreak  int       `json:"timeout_streak"`
	Attached       bool      `json:"attached"`
	LastFrameAt    time.Time `json:"last_frame_at"`
}

// Config tunes the pipeline's bounded waits.
type Config struct {
	// PullTimeout bounds each device pull.
	PullTimeout time.Duration
	// AcquireWait bounds the wait for a free pool buffer; running it out
	// drops the cycle.
	AcquireWait time.Duration
	// DegradedThreshold is the consecutive-timeout streak that emits
	// EventDegraded.
	DegradedThreshold int
}

func (c Config) withDefaults() Config {
	if c.PullTimeout <= 0 {
		c.PullTimeout = 100 * time.Millisecond
	}
	if c.AcquireWait <= 0 {
		c.AcquireWait = 50 * time.Millisecond
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = 5
	}
	return c
}

// Pipeline is the frame-path worker. While a session is attached it pulls,
// presents, and drains control commands; while detached it keeps the sink
// alive by re-presenting the last-known-good frame at the output rate.
type Pipeline struct {
	pool     *frame.Pool
	writer   *vcam.Writer
	controls *control.Channel
	cfg      Config
	log      *slog.Logger

	session atomic.Pointer[camera.Session]
	events  chan Event
	wake    chan struct{}

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}

	relayed        atomic.Uint64
	timeouts       atomic.Uint64
	droppedPool    atomic.Uint64
	droppedDecode  atomic.Uint64
	sinkErrors     atomic.Uint64
	controlApplied atomic.Uint64
	controlFailed  atomic.Uint64
	eventsDropped  atomic.Uint64
	streak         atomic.Int64
	lastFrameNano  atomic.Int64
}

// New builds the pipeline around the pool, writer and control channel.
func New(pool *frame.Pool, writer *vcam.Writer, controls *control.Channel, cfg Config) *Pipeline {
	return &Pipeline{
		pool:     pool,
		writer:   writer,
		controls: controls,
		cfg:      cfg.withDefaults(),
		log:      util.GetLogger().With("component", "relay"),
		events:   make(chan Event, 16),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the worker. Returns an error if already running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("relay: pipeline already started")
	}
	p.started = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

// Stop halts the worker and waits for it to exit. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()
	<-done
}

// Attach hands the worker a freshly opened session. The worker resumes
// pulling on its next iteration; sequence tracking restarts with the
// session's epoch.
func (p *Pipeline) Attach(sess *camera.Session) {
	p.session.Store(sess)
	p.streak.Store(0)
	p.nudge()
}

// Detach removes the current session, returning the worker to holding
// output. The caller owns closing the session.
func (p *Pipeline) Detach() {
	p.session.Store(nil)
	p.nudge()
}

// Events returns the channel the supervisor consumes.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	var last time.Time
	if n := p.lastFrameNano.Load(); n > 0 {
		last = time.Unix(0, n)
	}
	return Stats{
		Relayed:        p.relayed.Load(),
		Timeouts:       p.timeouts.Load(),
		DroppedPool:    p.droppedPool.Load(),
		DroppedDecode:  p.droppedDecode.Load(),
		SinkErrors:     p.sinkErrors.Load(),
		ControlApplied: p.controlApplied.Load(),
		ControlFailed:  p.controlFailed.Load(),
		TimeoutStreak:  int(p.streak.Load()),
		Attached:       p.session.Load() != nil,
		LastFrameAt:    last,
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("relay worker panic", "panic", r)
		}
	}()

	interval := p.writer.Format().Interval()
	var (
		lastEpoch uint64
		degraded  bool
	)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		sess := p.session.Load()
		if sess == nil {
			p.holdOutput(interval)
			continue
		}

		p.drainControls(sess)

		buf, err := p.pool.Acquire(p.cfg.AcquireWait)
		if err != nil {
			// The drop point: the sink still owns every buffer, so this
			// cycle's frame is skipped rather than queued behind it.
			p.droppedPool.Add(1)
			continue
		}

		err = sess.PullFrame(buf, p.cfg.PullTimeout)
		switch {
		case err == nil:
			if buf.Epoch != lastEpoch {
				lastEpoch = buf.Epoch
				p.emit(Event{Kind: EventFirstFrame, Epoch: buf.Epoch})
			}
			if degraded {
				degraded = false
				p.emit(Event{Kind: EventRecovered, Epoch: buf.Epoch})
			}
			p.streak.Store(0)

			if perr := p.writer.Present(buf); perr != nil {
				p.sinkErrors.Add(1)
				p.log.Warn("present failed", "seq", buf.Seq, "error", perr)
			} else {
				p.relayed.Add(1)
				p.lastFrameNano.Store(time.Now().UnixNano())
			}
			p.pool.Release(buf)

		case errors.Is(err, camera.ErrPullTimeout):
			p.pool.Release(buf)
			p.timeouts.Add(1)
			streak := int(p.streak.Add(1))
			if streak == p.cfg.DegradedThreshold && !degraded {
				degraded = true
				p.emit(Event{Kind: EventDegraded, Epoch: lastEpoch, Streak: streak})
			}

		case errors.Is(err, camera.ErrFrameCorrupt):
			p.pool.Release(buf)
			p.droppedDecode.Add(1)
			p.streak.Store(0)
			p.log.Debug("corrupt frame skipped", "error", err)

		case errors.Is(err, camera.ErrSessionClosed):
			// Supervisor-initiated teardown; just let go.
			p.pool.Release(buf)
			p.session.CompareAndSwap(sess, nil)
			degraded = false

		case camera.IsSessionFatal(err):
			// Link-level failure: hand the session back to the supervisor
			// and keep the sink alive from holding output.
			p.pool.Release(buf)
			p.session.CompareAndSwap(sess, nil)
			degraded = false
			p.streak.Store(0)
			p.log.Warn("device link lost", "epoch", lastEpoch, "error", err)
			p.emit(Event{Kind: EventLinkLost, Epoch: lastEpoch, Err: err})

		default:
			// Anything unrecognized classifies Transient: skip the cycle,
			// keep the session.
			p.pool.Release(buf)
			p.log.Warn("frame pull failed", "class", camera.Classify(err), "error", err)
		}
	}
}

// holdOutput keeps the sink presenting while no session is attached: one
// last-known-good write per frame interval. Attach interrupts the sleep.
func (p *Pipeline) holdOutput(interval time.Duration) {
	if err := p.writer.PresentLastKnownGood(); err != nil {
		p.sinkErrors.Add(1)
		p.log.Warn("holding present failed", "error", err)
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.wake:
	case <-p.stop:
	}
}

// drainControls applies every pending control command in submission order.
// The channel bound caps the work done per cycle. Failures never stop
// video; outcomes are reported for the control surface.
func (p *Pipeline) drainControls(sess *camera.Session) {
	for {
		cmd, ok := p.controls.TryRecv()
		if !ok {
			return
		}
		if err := sess.PushControl(cmd); err != nil {
			p.controlFailed.Add(1)
			p.log.Warn("control failed", "command", cmd.String(), "error", err)
			p.emitBestEffort(Event{Kind: EventControlFailed, Command: cmd.String(), Err: err})
			continue
		}
		p.controlApplied.Add(1)
		p.emitBestEffort(Event{Kind: EventControlApplied, Command: cmd.String()})
	}
}

// emit delivers a state-bearing event; backs off only on shutdown.
func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.stop:
	}
}

// emitBestEffort delivers a display-only event, dropping it if the
// supervisor is slow rather than stalling the frame path.
func (p *Pipeline) emitBestEffort(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.eventsDropped.Add(1)
	}
}

func (p *Pipeline) nudge() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
