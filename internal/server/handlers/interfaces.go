package handlers

import (
	"time"

	"github.com/oakbridge/oakbridge/internal/bridge"
	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/supervisor"
	"github.com/oakbridge/oakbridge/internal/vcam"
)

// ServerService defines the interface for server operations that handlers need
type ServerService interface {
	// Status and info
	IsRunning() bool
	GetPort() int
	GetUptime() time.Duration
	GetBuildID() string
	GetVersion() string

	// Pipeline access
	StreamFormat() frame.Format
	ConnectionState() supervisor.Snapshot
	PipelineStats() bridge.Stats
	Devices() ([]camera.DeviceInfo, time.Time)
	SubmitControl(cmd camera.Command) error
	SnapshotJPEG() ([]byte, vcam.SnapshotMeta, error)

	// Status feed
	SubscribeStatus() (string, <-chan supervisor.StatusEvent)
	UnsubscribeStatus(id string)

	// Server lifecycle
	Stop() error
}
