package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oakbridge/oakbridge/internal/bandwidth"
	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/relay"
	"github.com/oakbridge/oakbridge/internal/util"
)

// DefaultPollInterval is how often the supervisor scans for devices while
// disconnected.
const DefaultPollInterval = time.Second

// Config carries the supervisor's tunables.
type Config struct {
	// PollInterval between discovery scans while no device is bound.
	PollInterval time.Duration
	// Format every session is opened with.
	Format frame.Format
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Stats are the supervisor's counters, aggregated into /api/stats.
type Stats struct {
	Scans      uint64 `json:"scans"`
	Opens      uint64 `json:"opens"`
	OpenErrors uint64 `json:"openErrors"`
	LinkLosses uint64 `json:"linkLosses"`
}

// Supervisor owns the connection lifecycle: it discovers devices, opens
// sessions, hands them to the frame relay, and reacts to relay events by
// moving through the connection state machine. It is the control-path
// execution context; the relay is the frame-path one. All session opens
// and closes happen on the supervisor goroutine, so the session-open
// invariant holds without extra locking.
type Supervisor struct {
	provider camera.Provider
	pipeline *relay.Pipeline
	adaptor  *bandwidth.Adaptor
	cfg      Config
	log      *slog.Logger
	feed     *Feed

	snap atomic.Pointer[Snapshot]

	scanMu     sync.Mutex
	lastScan   []camera.DeviceInfo
	lastScanAt time.Time

	scans      atomic.Uint64
	opens      atomic.Uint64
	openErrors atomic.Uint64
	linkLosses atomic.Uint64

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// New builds a supervisor. The pipeline must already be running (or be
// started before Start is called) for events to drain.
func New(provider camera.Provider, pipeline *relay.Pipeline, adaptor *bandwidth.Adaptor, cfg Config) *Supervisor {
	s := &Supervisor{
		provider: provider,
		pipeline: pipeline,
		adaptor:  adaptor,
		cfg:      cfg.withDefaults(),
		log:      util.GetLogger().With("component", "supervisor"),
		feed:     NewFeed(),
	}
	s.snap.Store(&Snapshot{State: StateDisconnected, Since: time.Now(), Reason: "startup"})
	return s
}

// Start launches the supervisor loop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("supervisor already started")
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Stop shuts the loop down, closing any open session, and waits for it
// to finish. The feed is closed afterwards so subscribers see the final
// state change first.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.feed.Close()
}

// State returns the current state snapshot.
func (s *Supervisor) State() Snapshot {
	return *s.snap.Load()
}

// Devices returns the most recent discovery scan and when it ran. While a
// session is open no scans run, so the result may predate the connection.
func (s *Supervisor) Devices() ([]camera.DeviceInfo, time.Time) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	out := make([]camera.DeviceInfo, len(s.lastScan))
	copy(out, s.lastScan)
	return out, s.lastScanAt
}

// Subscribe attaches a status feed subscriber.
func (s *Supervisor) Subscribe() (string, <-chan StatusEvent) {
	return s.feed.Subscribe()
}

// Unsubscribe detaches a status feed subscriber.
func (s *Supervisor) Unsubscribe(id string) {
	s.feed.Unsubscribe(id)
}

// Stats returns the supervisor's counters.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Scans:      s.scans.Load(),
		Opens:      s.opens.Load(),
		OpenErrors: s.openErrors.Load(),
		LinkLosses: s.linkLosses.Load(),
	}
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("supervisor loop panic", "panic", r)
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var sess *camera.Session
	var epoch uint64

	shutdown := func() {
		s.transition(StateClosing, "shutdown requested", descOf(sess))
		if sess != nil {
			s.pipeline.Detach()
			sess.Close()
			sess = nil
		}
		s.transition(StateDisconnected, "closed", nil)
	}

	for {
		select {
		case <-s.stop:
			shutdown()
			return
		case <-ctx.Done():
			shutdown()
			return

		case ev, ok := <-s.pipeline.Events():
			if !ok {
				shutdown()
				return
			}
			sess = s.handleRelayEvent(ev, sess)

		case <-ticker.C:
			if s.State().State != StateDisconnected {
				continue
			}
			sess, epoch = s.tryConnect(ctx, epoch)
		}
	}
}

// tryConnect runs one discovery scan and, if a device shows up, opens a
// session on it and attaches the relay. Returns the session (nil when the
// attempt failed) and the possibly advanced epoch.
func (s *Supervisor) tryConnect(ctx context.Context, epoch uint64) (*camera.Session, uint64) {
	s.scans.Add(1)
	devices, err := s.provider.Discover(ctx)
	if err != nil {
		s.log.Warn("device discovery failed", "error", err)
		return nil, epoch
	}

	s.scanMu.Lock()
	s.lastScan = devices
	s.lastScanAt = time.Now()
	s.scanMu.Unlock()

	if len(devices) == 0 {
		return nil, epoch
	}

	info := devices[0]
	s.transition(StateConnecting, fmt.Sprintf("device discovered: %s", info.ID), nil)

	// Each session gets a fresh epoch so stale frames from the previous
	// link can never land after the new one starts producing.
	epoch++
	s.opens.Add(1)
	sess, err := camera.Open(ctx, s.provider, info, camera.SessionConfig{
		Format:       s.cfg.Format,
		Epoch:        epoch,
		PickEncoding: s.adaptor.Mode,
	})
	if err != nil {
		s.openErrors.Add(1)
		s.log.Warn("session open failed", "device", info.ID, "class", camera.Classify(err), "error", err)
		s.transition(StateDisconnected, fmt.Sprintf("open failed: %v", err), nil)
		return nil, epoch
	}

	s.pipeline.Attach(sess)
	s.log.Info("session opened",
		"device", info.ID,
		"speed", sess.Descriptor().Speed.String(),
		"encoding", sess.Descriptor().Encoding.String(),
		"epoch", epoch)
	return sess, epoch
}

// handleRelayEvent applies one relay event to the state machine and
// returns the (possibly closed and nilled) session.
func (s *Supervisor) handleRelayEvent(ev relay.Event, sess *camera.Session) *camera.Session {
	state := s.State().State

	switch ev.Kind {
	case relay.EventFirstFrame:
		if state == StateConnecting {
			s.transition(StateStreaming, "first frame received", descOf(sess))
		}

	case relay.EventDegraded:
		switch state {
		case StateStreaming:
			s.transition(StateDegraded, fmt.Sprintf("%d consecutive pull timeouts", ev.Streak), descOf(sess))
		case StateConnecting:
			// Never produced a frame; treat the device as not viable and
			// let the next poll try again.
			sess = s.dropSession(sess, "no frames after open")
		}

	case relay.EventRecovered:
		if state == StateDegraded {
			s.transition(StateStreaming, "frames resumed", descOf(sess))
		}

	case relay.EventLinkLost:
		s.linkLosses.Add(1)
		s.log.Warn("device link lost", "error", ev.Err)
		sess = s.dropSession(sess, "link lost")

	case relay.EventControlApplied:
		s.feed.Publish(StatusEvent{
			Type:    EventControlResult,
			Command: ev.Command,
			OK:      true,
			Device:  descOf(sess),
			At:      time.Now(),
		})

	case relay.EventControlFailed:
		s.feed.Publish(StatusEvent{
			Type:    EventControlResult,
			Command: ev.Command,
			OK:      false,
			Error:   fmt.Sprint(ev.Err),
			Device:  descOf(sess),
			At:      time.Now(),
		})
	}
	return sess
}

// dropSession closes sess (the relay detaches itself on fatal errors, but
// detaching twice is harmless) and moves to Disconnected. Last-known-good
// output keeps flowing from the relay's holding mode.
func (s *Supervisor) dropSession(sess *camera.Session, reason string) *camera.Session {
	s.pipeline.Detach()
	if sess != nil {
		sess.Close()
	}
	s.transition(StateDisconnected, reason, nil)
	return nil
}

func (s *Supervisor) transition(to State, reason string, desc *camera.Descriptor) {
	from := s.snap.Load().State
	if from == to {
		return
	}
	now := time.Now()
	s.snap.Store(&Snapshot{State: to, Since: now, Descriptor: desc, Reason: reason})
	s.log.Info("state changed", "from", from.String(), "to", to.String(), "reason", reason)
	s.feed.Publish(StatusEvent{
		Type:   EventStateChanged,
		From:   from.String(),
		State:  to.String(),
		Reason: reason,
		Device: desc,
		At:     now,
	})
}

func descOf(sess *camera.Session) *camera.Descriptor {
	if sess == nil {
		return nil
	}
	d := sess.Descriptor()
	return &d
}
