// Package bandwidth decides the device-side encoding mode from the
// physical link's capability.
package bandwidth

import (
	"log/slog"

	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/util"
)

// DefaultHeadroom is the fraction of a link class's nominal throughput
// treated as sustainable. Isochronous transfers share the bus with control
// traffic and never reach the nominal rate.
const DefaultHeadroom = 0.75

// Adaptor picks the encoding mode once per session, before the first pull.
// The decision is not revisited mid-stream: flipping formats on a live
// stream costs a device reconfigure and visible churn, while a session that
// opened compressed stays merely suboptimal if conditions improve.
type Adaptor struct {
	format   frame.Format
	headroom float64
	log      *slog.Logger
}

// New builds an adaptor for the configured stream format. A non-positive
// headroom falls back to DefaultHeadroom.
func New(format frame.Format, headroom float64) *Adaptor {
	if headroom <= 0 || headroom > 1 {
		headroom = DefaultHeadroom
	}
	return &Adaptor{
		format:   format,
		headroom: headroom,
		log:      util.GetLogger().With("component", "bandwidth"),
	}
}

// Mode returns the encoding the session should request from the device:
// raw when the link sustains uncompressed delivery at the configured
// geometry and rate, compressed otherwise. An unknown link class is
// treated as insufficient.
func (a *Adaptor) Mode(speed camera.LinkSpeed) camera.EncodingMode {
	required := a.format.FrameBytes() * a.format.FPS
	usable := float64(speed.Throughput()) * a.headroom

	mode := camera.EncodingRaw
	if float64(required) > usable {
		mode = camera.EncodingMJPEG
	}

	a.log.Info("encoding mode selected",
		"link", speed.String(),
		"required_bps", required,
		"usable_bps", int(usable),
		"mode", mode.String())
	return mode
}
