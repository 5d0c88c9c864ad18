package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/util"
)

// SessionConfig carries everything Open needs besides the device identity.
type SessionConfig struct {
	// Format is the stream geometry the device is configured to deliver.
	Format frame.Format

	// Epoch is the session instance counter assigned by the supervisor. It
	// is stamped into every frame so the sink writer can order frames
	// across reconnects.
	Epoch uint64

	// PickEncoding chooses the encoding mode from the negotiated link
	// class. Called exactly once, between binding and configuring, so the
	// decision lands on the device before the first pull. Nil means raw.
	PickEncoding func(LinkSpeed) EncodingMode
}

// Descriptor identifies the currently bound device and how it streams. At
// most one live descriptor exists system-wide.
type Descriptor struct {
	Device   DeviceInfo   `json:"device"`
	Speed    LinkSpeed    `json:"speed"`
	Encoding EncodingMode `json:"encoding"`
	Epoch    uint64       `json:"epoch"`
	OpenedAt time.Time    `json:"opened_at"`
}

// Session owns one open device link from bind to close. The frame path
// calls PullFrame from its single worker; PushControl and Close may be
// called from the control path. Descriptor reads are safe from anywhere.
type Session struct {
	link Link
	cfg  SessionConfig
	log  *slog.Logger

	mu   sync.RWMutex
	desc Descriptor

	seq    atomic.Uint64
	closed atomic.Bool

	// MJPEG decode scratch, reused across pulls so decoding stays off the
	// allocator.
	scratch []byte
	rgba    *image.RGBA
}

// Open binds a discovered device and walks it to streaming readiness:
// bind, query link speed, pick the encoding mode for this session, then
// push the stream configuration down so the on-device ISP emits sink-ready
// frames. Any failure closes the link and reports an open error; the
// caller stays eligible for the next discovery poll.
func Open(ctx context.Context, provider Provider, info DeviceInfo, cfg SessionConfig) (*Session, error) {
	if !cfg.Format.Valid() {
		return nil, errors.Wrapf(ErrConfigRejected, "invalid stream format %s", cfg.Format)
	}

	link, err := provider.Open(ctx, info.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open device %s", info.ID)
	}

	speed, err := link.Speed()
	if err != nil {
		link.Close()
		return nil, errors.Wrapf(err, "failed to query link speed of %s", info.ID)
	}

	encoding := EncodingRaw
	if cfg.PickEncoding != nil {
		encoding = cfg.PickEncoding(speed)
	}

	if err := link.Configure(StreamConfig{Format: cfg.Format, Encoding: encoding}); err != nil {
		link.Close()
		return nil, errors.Wrapf(err, "failed to configure device %s", info.ID)
	}

	s := &Session{
		link: link,
		cfg:  cfg,
		log:  util.GetLogger().With("component", "camera"),
		desc: Descriptor{
			Device:   link.Info(),
			Speed:    speed,
			Encoding: encoding,
			Epoch:    cfg.Epoch,
			OpenedAt: time.Now(),
		},
	}
	if encoding == EncodingMJPEG {
		// Compressed payloads can exceed the raw frame size on noisy input,
		// so the scratch carries headroom.
		s.scratch = make([]byte, cfg.Format.FrameBytes()+64<<10)
		s.rgba = frame.NewRGBA(cfg.Format)
	}

	s.log.Info("device session opened",
		"device", info.ID, "speed", speed.String(), "encoding", encoding.String(), "epoch", cfg.Epoch)
	return s, nil
}

// Descriptor returns a snapshot of the session descriptor.
func (s *Session) Descriptor() Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desc
}

// PullFrame blocks up to timeout for the next frame and fills buf with
// sink-ready BGR pixels plus sequence metadata. Sequence numbers start at 0
// and increase by one per delivered frame; dropped cycles never consume a
// number, so gaps in the presented stream are introduced only downstream.
//
// Returns ErrPullTimeout (retry), ErrFrameCorrupt (skip), ErrLinkLost or
// ErrSessionClosed (close and hand over to the supervisor).
func (s *Session) PullFrame(buf *frame.Buffer, timeout time.Duration) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	dst := buf.Data
	if s.scratch != nil {
		dst = s.scratch
	}

	info, err := s.link.ReadFrame(dst, timeout)
	if err != nil {
		if s.closed.Load() {
			return ErrSessionClosed
		}
		return err
	}

	if s.scratch != nil {
		if err := decodeMJPEG(buf.Data, s.scratch[:info.Bytes], s.rgba, s.cfg.Format); err != nil {
			return err
		}
	}

	buf.SetFormat(s.cfg.Format)
	buf.Seq = s.seq.Add(1) - 1
	buf.Epoch = s.cfg.Epoch
	buf.CaptureTime = info.CaptureTime
	buf.TraceID = uuid.NewString()
	return nil
}

// PushControl applies one command on the device, in submission order.
// Failures are non-fatal to video; the caller reports them to the control
// surface. QueryLinkSpeed is answered by the session itself: it re-reads
// the link class and refreshes the descriptor.
func (s *Session) PushControl(cmd Command) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	if _, ok := cmd.(QueryLinkSpeed); ok {
		speed, err := s.link.Speed()
		if err != nil {
			return errors.Wrap(err, "link speed query failed")
		}
		s.mu.Lock()
		s.desc.Speed = speed
		s.mu.Unlock()
		s.log.Info("link speed queried", "speed", speed.String())
		return nil
	}

	if err := s.link.WriteControl(cmd); err != nil {
		return errors.Wrapf(err, "control %s failed", cmd)
	}
	s.log.Debug("control applied", "command", cmd.String())
	return nil
}

// Close tears the link down. Idempotent; unblocks an in-flight PullFrame,
// which then reports ErrSessionClosed.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if err := s.link.Close(); err != nil {
		s.log.Warn("link close failed", "error", err)
	}
	s.log.Info("device session closed", "device", s.desc.Device.ID, "epoch", s.cfg.Epoch)
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
