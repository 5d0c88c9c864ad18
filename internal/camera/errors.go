package camera

import (
	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
)

var (
	// ErrPullTimeout means no frame arrived within the pull timeout. The
	// caller retries; a streak of these degrades the stream but never
	// tears the session down by itself.
	ErrPullTimeout = errors.New("camera: frame pull timed out")

	// ErrLinkLost means the device link failed underneath the session. The
	// session must be closed; recovery is the supervisor's job.
	ErrLinkLost = errors.New("camera: device link lost")

	// ErrSessionClosed is returned by operations on a closed session, and
	// by a pull that Close unblocked.
	ErrSessionClosed = errors.New("camera: session closed")

	// ErrFrameCorrupt means a compressed frame failed to decode. The frame
	// is skipped; the link is still considered healthy.
	ErrFrameCorrupt = errors.New("camera: frame payload corrupt")

	// ErrControlRejected means the device refused a control command. Video
	// is unaffected; the result is reported back to the control surface.
	ErrControlRejected = errors.New("camera: control rejected by device")

	// ErrConfigRejected means the device refused the initial stream
	// configuration during open.
	ErrConfigRejected = errors.New("camera: stream configuration rejected")

	// ErrNoDevice means open found no device to bind.
	ErrNoDevice = errors.New("camera: no device available")
)

// Class buckets every error the frame and control paths can see. Nothing in
// any bucket is allowed to propagate as a process failure: Transient retries
// in place, SessionFatal becomes a supervisor state transition,
// ConfigurationInvalid becomes a control-surface report, ResourceExhausted
// becomes visible dropped frames.
type Class int

const (
	Transient Class = iota
	SessionFatal
	ConfigurationInvalid
	ResourceExhausted
)

func (c Class) String() string {
	switch c {
	case SessionFatal:
		return "session-fatal"
	case ConfigurationInvalid:
		return "configuration-invalid"
	case ResourceExhausted:
		return "resource-exhausted"
	default:
		return "transient"
	}
}

// Classify maps an error to its handling class. Unrecognized errors are
// treated as Transient, the only class that cannot over-react.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Transient
	case errors.Is(err, ErrLinkLost), errors.Is(err, ErrSessionClosed), errors.Is(err, ErrNoDevice):
		return SessionFatal
	case errors.Is(err, ErrControlRejected), errors.Is(err, ErrConfigRejected):
		return ConfigurationInvalid
	case errors.Is(err, frame.ErrExhausted):
		return ResourceExhausted
	default:
		return Transient
	}
}

// IsSessionFatal reports whether err requires closing the session.
func IsSessionFatal(err error) bool {
	return Classify(err) == SessionFatal
}
