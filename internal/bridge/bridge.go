// Package bridge assembles the streaming pipeline: frame pool, sink
// writer, relay worker, control channel, bandwidth adaptor and the
// connection supervisor, wired to one device provider. The server exposes
// it; the CLI talks to the server.
package bridge

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/config"
	"github.com/oakbridge/oakbridge/internal/bandwidth"
	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/control"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/relay"
	"github.com/oakbridge/oakbridge/internal/supervisor"
	"github.com/oakbridge/oakbridge/internal/util"
	"github.com/oakbridge/oakbridge/internal/vcam"
)

const snapshotQuality = 90

// Stats aggregates counters from every pipeline stage.
type Stats struct {
	Pool       frame.PoolStats  `json:"pool"`
	Relay      relay.Stats      `json:"relay"`
	Writer     vcam.WriterStats `json:"writer"`
	Controls   control.Stats    `json:"controls"`
	Supervisor supervisor.Stats `json:"supervisor"`
}

// Bridge owns the full device-to-sink pipeline.
type Bridge struct {
	format   frame.Format
	provider camera.Provider
	pool     *frame.Pool
	surface  *vcam.MemorySurface
	writer   *vcam.Writer
	controls *control.Channel
	pipeline *relay.Pipeline
	sup      *supervisor.Supervisor
	log      *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New assembles the pipeline around the given provider using the
// configured stream format. Pool allocation happens up front and is the
// fatal path for a bad format.
func New(provider camera.Provider) (*Bridge, error) {
	format := frame.Format{
		Width:  config.GetStreamWidth(),
		Height: config.GetStreamHeight(),
		Pixel:  frame.FormatBGR24,
		FPS:    config.GetStreamFPS(),
	}

	pool, err := frame.NewPool(config.GetPoolSize(), format)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate frame pool")
	}

	surface := vcam.NewMemorySurface(format)
	writer := vcam.NewWriter(surface)
	controls := control.NewChannel(config.GetControlCapacity())
	pipeline := relay.New(pool, writer, controls, relay.Config{
		PullTimeout:       config.GetPullTimeout(),
		AcquireWait:       config.GetAcquireWait(),
		DegradedThreshold: config.GetDegradedThreshold(),
	})
	adaptor := bandwidth.New(format, config.GetBandwidthHeadroom())
	sup := supervisor.New(provider, pipeline, adaptor, supervisor.Config{
		PollInterval: config.GetPollInterval(),
		Format:       format,
	})

	return &Bridge{
		format:   format,
		provider: provider,
		pool:     pool,
		surface:  surface,
		writer:   writer,
		controls: controls,
		pipeline: pipeline,
		sup:      sup,
		log:      util.GetLogger().With("component", "bridge"),
	}, nil
}

// NewDefault builds a bridge on the configured device provider. The
// emulated provider is the only one built in; a hardware link plugs in as
// another camera.Provider.
func NewDefault() (*Bridge, error) {
	if !config.IsDeviceEmulated() {
		return nil, errors.New("no hardware device provider is built in, set device.emulated to true")
	}
	speed := camera.ParseLinkSpeed(config.GetEmulatedLinkSpeed())
	provider := camera.NewEmulatedProvider(camera.EmulatedConfig{Speed: speed})
	return New(provider)
}

// Start launches the relay worker and the supervisor.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("bridge already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := b.pipeline.Start(ctx); err != nil {
		cancel()
		return errors.Wrap(err, "failed to start relay")
	}
	if err := b.sup.Start(ctx); err != nil {
		b.pipeline.Stop()
		cancel()
		return errors.Wrap(err, "failed to start supervisor")
	}

	b.started = true
	b.cancel = cancel
	b.log.Info("bridge started",
		"format", b.format.String(),
		"pool", config.GetPoolSize(),
		"emulated", config.IsDeviceEmulated())
	return nil
}

// Stop tears the pipeline down: the supervisor first so the session closes
// cleanly, then the relay worker, then the sink surface.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.started = false

	b.sup.Stop()
	b.pipeline.Stop()
	if err := b.surface.Close(); err != nil {
		b.log.Warn("surface close failed", "error", err)
	}
	b.cancel()
	b.log.Info("bridge stopped")
}

// Format returns the stream format the pipeline runs at.
func (b *Bridge) Format() frame.Format {
	return b.format
}

// State returns the supervisor's current state snapshot.
func (b *Bridge) State() supervisor.Snapshot {
	return b.sup.State()
}

// Devices returns the most recent discovery scan.
func (b *Bridge) Devices() ([]camera.DeviceInfo, time.Time) {
	return b.sup.Devices()
}

// SubmitControl queues one command for the device. Returns
// control.ErrBusy when the channel is full.
func (b *Bridge) SubmitControl(cmd camera.Command) error {
	return b.controls.Submit(cmd)
}

// Stats gathers counters from every stage.
func (b *Bridge) Stats() Stats {
	return Stats{
		Pool:       b.pool.Stats(),
		Relay:      b.pipeline.Stats(),
		Writer:     b.writer.Stats(),
		Controls:   b.controls.Stats(),
		Supervisor: b.sup.Stats(),
	}
}

// SnapshotJPEG encodes the currently presented frame as JPEG.
func (b *Bridge) SnapshotJPEG() ([]byte, vcam.SnapshotMeta, error) {
	data, meta := b.writer.Snapshot()

	rgba := frame.NewRGBA(b.format)
	if err := frame.BGRToRGBA(rgba, data, b.format); err != nil {
		return nil, meta, err
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, rgba, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		return nil, meta, errors.Wrap(err, "failed to encode snapshot")
	}
	return out.Bytes(), meta, nil
}

// Subscribe attaches a status feed subscriber.
func (b *Bridge) Subscribe() (string, <-chan supervisor.StatusEvent) {
	return b.sup.Subscribe()
}

// Unsubscribe detaches a status feed subscriber.
func (b *Bridge) Unsubscribe(id string) {
	b.sup.Unsubscribe(id)
}
