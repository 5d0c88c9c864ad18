package camera

import "fmt"

// Device-defined control bounds. Values outside these ranges are clamped at
// command construction, so a command in flight is always applicable.
const (
	FocusMin = 0
	FocusMax = 255

	ExposureMinUs = 1
	ExposureMaxUs = 33000

	ISOMin = 100
	ISOMax = 1600

	WhiteBalanceMinK     = 1000
	WhiteBalanceMaxK     = 12000
	WhiteBalanceDefaultK = 6500
)

// Command is one control-surface request to the device. Commands are
// immutable values, delivered in submission order, and each is consumed
// exactly once by the session. Applying the same command twice leaves the
// device in the same state as applying it once; every setter carries an
// absolute value.
type Command interface {
	fmt.Stringer
	isCommand()
}

// SetFocus moves the lens to an absolute position and disables autofocus.
type SetFocus struct {
	Position int
}

// NewSetFocus clamps pos to the device's focus range.
func NewSetFocus(pos int) SetFocus {
	return SetFocus{Position: clamp(pos, FocusMin, FocusMax)}
}

func (c SetFocus) isCommand()     {}
func (c SetFocus) String() string { return fmt.Sprintf("set-focus position=%d", c.Position) }

// SetExposure sets manual exposure time and sensitivity, disabling auto
// exposure.
type SetExposure struct {
	TimeUs int
	ISO    int
}

// NewSetExposure clamps both values to the device's exposure ranges.
func NewSetExposure(timeUs, iso int) SetExposure {
	return SetExposure{
		TimeUs: clamp(timeUs, ExposureMinUs, ExposureMaxUs),
		ISO:    clamp(iso, ISOMin, ISOMax),
	}
}

func (c SetExposure) isCommand() {}
func (c SetExposure) String() string {
	return fmt.Sprintf("set-exposure time_us=%d iso=%d", c.TimeUs, c.ISO)
}

// SetWhiteBalance sets manual white balance in Kelvin.
type SetWhiteBalance struct {
	Kelvin int
}

// NewSetWhiteBalance clamps kelvin to the device's practical range.
func NewSetWhiteBalance(kelvin int) SetWhiteBalance {
	return SetWhiteBalance{Kelvin: clamp(kelvin, WhiteBalanceMinK, WhiteBalanceMaxK)}
}

func (c SetWhiteBalance) isCommand()     {}
func (c SetWhiteBalance) String() string { return fmt.Sprintf("set-white-balance kelvin=%d", c.Kelvin) }

// TriggerAutofocus runs one autofocus sweep. Stateless; the lens stays
// wherever the sweep lands.
type TriggerAutofocus struct{}

func (c TriggerAutofocus) isCommand()     {}
func (c TriggerAutofocus) String() string { return "trigger-autofocus" }

// SetAutoFocus enables or disables continuous autofocus.
type SetAutoFocus struct {
	Enabled bool
}

func (c SetAutoFocus) isCommand()     {}
func (c SetAutoFocus) String() string { return fmt.Sprintf("set-auto-focus enabled=%t", c.Enabled) }

// SetAutoExposure enables or disables auto exposure.
type SetAutoExposure struct {
	Enabled bool
}

func (c SetAutoExposure) isCommand() {}
func (c SetAutoExposure) String() string {
	return fmt.Sprintf("set-auto-exposure enabled=%t", c.Enabled)
}

// QueryLinkSpeed asks the session to re-read the negotiated link class and
// refresh its descriptor. Handled by the session itself, not forwarded to
// the device's control stream.
type QueryLinkSpeed struct{}

func (c QueryLinkSpeed) isCommand()     {}
func (c QueryLinkSpeed) String() string { return "query-link-speed" }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
