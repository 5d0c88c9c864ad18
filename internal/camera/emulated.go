package camera

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
)

// EmulatedConfig configures the synthetic capture device.
type EmulatedConfig struct {
	Device DeviceInfo
	Speed  LinkSpeed
}

// EmulatedProvider is a Provider backed by a synthetic device that paces
// generated pattern frames at the configured rate. It is the development
// and test stand-in for a hardware link, and supports fault injection:
// unplugging, open failures, frozen reads, and control rejection.
type EmulatedProvider struct {
	mu            sync.Mutex
	cfg           EmulatedConfig
	unplugged     bool
	failOpens     int
	rejectControl bool
	stalled       bool
	link          *emulatedLink
}

// NewEmulatedProvider builds a provider for one synthetic device. Zero-value
// config fields get defaults: device "oak-emu-0" on a USB3 link.
func NewEmulatedProvider(cfg EmulatedConfig) *EmulatedProvider {
	if cfg.Device.ID == "" {
		cfg.Device.ID = "oak-emu-0"
	}
	if cfg.Device.Name == "" {
		cfg.Device.Name = "OAK-D Lite (emulated)"
	}
	if cfg.Speed == LinkSpeedUnknown {
		cfg.Speed = LinkSpeedUSB3
	}
	cfg.Device.Speed = cfg.Speed
	return &EmulatedProvider{cfg: cfg}
}

// Discover lists the synthetic device, or nothing while unplugged.
func (p *EmulatedProvider) Discover(ctx context.Context) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unplugged {
		return nil, nil
	}
	return []DeviceInfo{p.cfg.Device}, nil
}

// Open binds the synthetic device and returns an exclusive link to it.
func (p *EmulatedProvider) Open(ctx context.Context, id string) (Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unplugged || id != p.cfg.Device.ID {
		return nil, errors.Wrapf(ErrNoDevice, "device %s not attached", id)
	}
	if p.failOpens > 0 {
		p.failOpens--
		return nil, errors.Errorf("device %s failed to bind", id)
	}
	if p.link != nil && !p.link.terminated() {
		return nil, errors.Errorf("device %s already bound", id)
	}

	p.link = newEmulatedLink(p, p.cfg)
	return p.link, nil
}

// Unplug detaches the device: discovery stops listing it and any open link
// reports ErrLinkLost, including to a read already in flight.
func (p *EmulatedProvider) Unplug() {
	p.mu.Lock()
	link := p.link
	p.unplugged = true
	p.mu.Unlock()
	if link != nil {
		link.lose()
	}
}

// Replug reattaches the device for the next discovery poll.
func (p *EmulatedProvider) Replug() {
	p.mu.Lock()
	p.unplugged = false
	p.mu.Unlock()
}

// FailNextOpens makes the next n Open calls fail while the device stays
// discoverable.
func (p *EmulatedProvider) FailNextOpens(n int) {
	p.mu.Lock()
	p.failOpens = n
	p.mu.Unlock()
}

// SetStalled freezes (or thaws) frame delivery. While stalled, reads run
// their full timeout and report ErrPullTimeout, like a device that is bound
// but not producing.
func (p *EmulatedProvider) SetStalled(stalled bool) {
	p.mu.Lock()
	p.stalled = stalled
	p.mu.Unlock()
}

// SetRejectControl makes the device refuse control writes.
func (p *EmulatedProvider) SetRejectControl(reject bool) {
	p.mu.Lock()
	p.rejectControl = reject
	p.mu.Unlock()
}

// ControlState returns the applied control state of the currently bound
// link, if any. Lets tests verify what actually reached the device.
func (p *EmulatedProvider) ControlState() (ControlState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.link == nil {
		return ControlState{}, false
	}
	return p.link.ControlState(), true
}

func (p *EmulatedProvider) isStalled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stalled
}

func (p *EmulatedProvider) rejectsControl() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejectControl
}

// ControlState is the emulated device's applied configuration, readable by
// tests to verify what reached the device.
type ControlState struct {
	FocusPosition   int
	AutoFocus       bool
	ExposureTimeUs  int
	ISO             int
	AutoExposure    bool
	WhiteBalanceK   int
	AutofocusSweeps int
}

type emulatedLink struct {
	prov *EmulatedProvider
	dev  DeviceInfo

	mu         sync.Mutex
	cfg        StreamConfig
	configured bool
	state      ControlState
	counter    uint64
	nextFrame  time.Time

	// Scratch for the compressed mode: pattern goes raw -> RGBA -> JPEG.
	raw  []byte
	rgba *image.RGBA
	jbuf bytes.Buffer

	closed    chan struct{}
	lostCh    chan struct{}
	closeOnce sync.Once
	loseOnce  sync.Once
	lost      atomic.Bool
	down      atomic.Bool
}

func newEmulatedLink(p *EmulatedProvider, cfg EmulatedConfig) *emulatedLink {
	return &emulatedLink{
		prov:   p,
		dev:    cfg.Device,
		closed: make(chan struct{}),
		lostCh: make(chan struct{}),
		state: ControlState{
			AutoFocus:     true,
			AutoExposure:  true,
			WhiteBalanceK: WhiteBalanceDefaultK,
		},
	}
}

func (l *emulatedLink) Info() DeviceInfo { return l.dev }

func (l *emulatedLink) Speed() (LinkSpeed, error) {
	if l.lost.Load() {
		return LinkSpeedUnknown, ErrLinkLost
	}
	return l.dev.Speed, nil
}

func (l *emulatedLink) Configure(cfg StreamConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counter > 0 {
		return errors.Wrap(ErrConfigRejected, "stream already started")
	}
	if !cfg.Format.Valid() || cfg.Format.Pixel != frame.FormatBGR24 {
		return errors.Wrapf(ErrConfigRejected, "unsupported format %s", cfg.Format)
	}

	l.cfg = cfg
	l.configured = true
	l.nextFrame = time.Now().Add(cfg.Format.Interval())
	if cfg.Encoding == EncodingMJPEG {
		l.raw = make([]byte, cfg.Format.FrameBytes())
		l.rgba = frame.NewRGBA(cfg.Format)
	}
	return nil
}

// ReadFrame paces generated frames at the configured rate. The wait is
// interruptible by Close and by unplugging, so a blocked pull never
// outlives the link.
func (l *emulatedLink) ReadFrame(buf []byte, timeout time.Duration) (ReadInfo, error) {
	if err := l.aliveErr(); err != nil {
		return ReadInfo{}, err
	}

	l.mu.Lock()
	configured := l.configured
	due := l.nextFrame
	l.mu.Unlock()
	if !configured {
		return ReadInfo{}, errors.Wrap(ErrConfigRejected, "stream not configured")
	}

	if l.prov.isStalled() {
		if err := l.sleep(timeout); err != nil {
			return ReadInfo{}, err
		}
		return ReadInfo{}, ErrPullTimeout
	}

	wait := time.Until(due)
	if wait > timeout {
		if err := l.sleep(timeout); err != nil {
			return ReadInfo{}, err
		}
		return ReadInfo{}, ErrPullTimeout
	}
	if wait > 0 {
		if err := l.sleep(wait); err != nil {
			return ReadInfo{}, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.generate(buf)
	if err != nil {
		return ReadInfo{}, err
	}
	l.counter++

	// Keep the cadence; snap forward if we fell behind instead of bursting
	// to catch up.
	now := time.Now()
	l.nextFrame = l.nextFrame.Add(l.cfg.Format.Interval())
	if l.nextFrame.Before(now) {
		l.nextFrame = now.Add(l.cfg.Format.Interval())
	}

	return ReadInfo{Bytes: n, CaptureTime: now}, nil
}

func (l *emulatedLink) WriteControl(cmd Command) error {
	if err := l.aliveErr(); err != nil {
		return err
	}
	if l.prov.rejectsControl() {
		return errors.Wrapf(ErrControlRejected, "%s", cmd)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch c := cmd.(type) {
	case SetFocus:
		l.state.AutoFocus = false
		l.state.FocusPosition = c.Position
	case SetExposure:
		l.state.AutoExposure = false
		l.state.ExposureTimeUs = c.TimeUs
		l.state.ISO = c.ISO
	case SetWhiteBalance:
		l.state.WhiteBalanceK = c.Kelvin
	case TriggerAutofocus:
		l.state.AutofocusSweeps++
	case SetAutoFocus:
		l.state.AutoFocus = c.Enabled
	case SetAutoExposure:
		l.state.AutoExposure = c.Enabled
	default:
		return errors.Wrapf(ErrControlRejected, "unsupported command %s", cmd)
	}
	return nil
}

func (l *emulatedLink) Close() error {
	l.down.Store(true)
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// ControlState returns the device-side configuration as last applied.
func (l *emulatedLink) ControlState() ControlState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// FramesGenerated returns how many frames the device has produced.
func (l *emulatedLink) FramesGenerated() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

func (l *emulatedLink) lose() {
	l.lost.Store(true)
	l.loseOnce.Do(func() { close(l.lostCh) })
}

func (l *emulatedLink) terminated() bool {
	return l.down.Load() || l.lost.Load()
}

func (l *emulatedLink) aliveErr() error {
	if l.down.Load() {
		return ErrSessionClosed
	}
	if l.lost.Load() {
		return ErrLinkLost
	}
	return nil
}

// sleep waits for d unless the link closes or is lost first.
func (l *emulatedLink) sleep(d time.Duration) error {
	if d <= 0 {
		return l.aliveErr()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return l.aliveErr()
	case <-l.closed:
		return ErrSessionClosed
	case <-l.lostCh:
		return ErrLinkLost
	}
}

// generate writes frame number l.counter into buf and returns the payload
// length. The pattern is deterministic in the frame number: moving color
// bands with a white sweep column, so consecutive frames differ and tests
// can reproduce any frame.
func (l *emulatedLink) generate(buf []byte) (int, error) {
	f := l.cfg.Format

	dst := buf
	if l.cfg.Encoding == EncodingMJPEG {
		dst = l.raw
	}
	if len(dst) < f.FrameBytes() {
		return 0, errors.Errorf("frame buffer holds %d bytes, want %d", len(dst), f.FrameBytes())
	}

	writePattern(dst, f, l.counter)

	if l.cfg.Encoding != EncodingMJPEG {
		return f.FrameBytes(), nil
	}

	if err := frame.BGRToRGBA(l.rgba, l.raw, f); err != nil {
		return 0, err
	}
	l.jbuf.Reset()
	if err := jpeg.Encode(&l.jbuf, l.rgba, &jpeg.Options{Quality: 80}); err != nil {
		return 0, errors.Wrap(err, "jpeg encode failed")
	}
	if l.jbuf.Len() > len(buf) {
		return 0, errors.Errorf("compressed frame of %d bytes exceeds buffer", l.jbuf.Len())
	}
	return copy(buf, l.jbuf.Bytes()), nil
}

// writePattern renders BGR color bands shifted by the frame number, plus a
// sweeping white column for visible motion.
func writePattern(dst []byte, f frame.Format, n uint64) {
	palette := [8][3]byte{
		{0x00, 0x00, 0x00},
		{0xff, 0x00, 0x00},
		{0x00, 0xff, 0x00},
		{0xff, 0xff, 0x00},
		{0x00, 0x00, 0xff},
		{0xff, 0x00, 0xff},
		{0x00, 0xff, 0xff},
		{0xff, 0xff, 0xff},
	}

	stride := f.Stride()
	band := f.Width / len(palette)
	if band == 0 {
		band = 1
	}
	sweep := int(n) % f.Width

	row := dst[:stride]
	for x := 0; x < f.Width; x++ {
		c := palette[(x/band+int(n/8))%len(palette)]
		if x == sweep {
			c = [3]byte{0xff, 0xff, 0xff}
		}
		row[x*3+0] = c[0]
		row[x*3+1] = c[1]
		row[x*3+2] = c[2]
	}
	for y := 1; y < f.Height; y++ {
		copy(dst[y*stride:(y+1)*stride], row)
	}
}
