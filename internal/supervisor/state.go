package supervisor

import (
	"time"

	"github.com/oakbridge/oakbridge/internal/camera"
)

// State is the connection state machine's current position. The supervisor
// loop is its only writer; everyone else reads snapshots.
type State int

const (
	// StateDisconnected: no device bound; discovery polling is active.
	StateDisconnected State = iota
	// StateConnecting: a candidate device was discovered and a session is
	// being opened; streaming starts with the first pulled frame.
	StateConnecting
	// StateStreaming: frames are flowing to the sink.
	StateStreaming
	// StateDegraded: the session is open but pulls have been timing out
	// past the threshold; output continues from last-known-good plus
	// whatever still arrives.
	StateDegraded
	// StateClosing: explicit shutdown in progress.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDegraded:
		return "degraded"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// SessionOpen reports whether a device session is open in this state.
func (s State) SessionOpen() bool {
	return s == StateConnecting || s == StateStreaming || s == StateDegraded
}

// Snapshot is the multi-reader view of the supervisor's state.
type Snapshot struct {
	State      State
	Since      time.Time
	Descriptor *camera.Descriptor
	Reason     string
}

// EventType tags status feed events.
type EventType string

const (
	EventStateChanged  EventType = "state-changed"
	EventControlResult EventType = "control-result"
)

// StatusEvent is one display-only notification fanned out to status feed
// subscribers. Carries strings rather than domain types so it serializes
// straight onto the wire.
type StatusEvent struct {
	Type    EventType          `json:"type"`
	From    string             `json:"from,omitempty"`
	State   string             `json:"state,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Command string             `json:"command,omitempty"`
	OK      bool               `json:"ok,omitempty"`
	Error   string             `json:"error,omitempty"`
	Device  *camera.Descriptor `json:"device,omitempty"`
	At      time.Time          `json:"at"`
}
