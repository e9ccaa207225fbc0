package automation

import "time"

// Push button hold thresholds, measured from press to release.
const (
	ButtonMinHold    = 50 * time.Millisecond
	ButtonReportHold = 800 * time.Millisecond
	ButtonResetHold  = 9500 * time.Millisecond
)

// ButtonAction is what a completed press asks for.
type ButtonAction int

const (
	ButtonNone ButtonAction = iota
	// ButtonToggle clicks the door without the alarm.
	ButtonToggle
	// ButtonReport logs the controller's addresses and door state.
	ButtonReport
	// ButtonReset restores factory options.
	ButtonReset
)

func (a ButtonAction) String() string {
	switch a {
	case ButtonToggle:
		return "toggle"
	case ButtonReport:
		return "report"
	case ButtonReset:
		return "reset"
	}
	return "none"
}

// Button is the push button state. The zero value is released.
type Button struct {
	Down  bool
	Since time.Duration
}

// StepButton feeds one edge stamped at on the line's event clock. A press
// is classified when it is released; repeated press or release edges are
// ignored.
func StepButton(b Button, pressed bool, at time.Duration) (Button, ButtonAction) {
	if pressed {
		if b.Down {
			return b, ButtonNone
		}
		return Button{Down: true, Since: at}, ButtonNone
	}
	if !b.Down {
		return b, ButtonNone
	}

	held := at - b.Since
	switch {
	case held > ButtonResetHold:
		return Button{}, ButtonReset
	case held > ButtonReportHold:
		return Button{}, ButtonReport
	case held > ButtonMinHold:
		return Button{}, ButtonToggle
	}
	return Button{}, ButtonNone
}
