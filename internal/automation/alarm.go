package automation

import "time"

// TickInterval is the alarm sequencer period.
const TickInterval = 500 * time.Millisecond

// DefaultAutoCloseAlarm is the countdown used for automation closes when the
// configured alarm is off.
const DefaultAutoCloseAlarm = 5

// Command is a door actuation.
type Command int

const (
	CommandToggle Command = iota
	CommandClose
	CommandOpen
)

func (c Command) String() string {
	switch c {
	case CommandClose:
		return "close"
	case CommandOpen:
		return "open"
	}
	return "toggle"
}

// AlarmSeconds maps the alarm option (0 none, 1 short, 2 long) to seconds.
func AlarmSeconds(option int) int {
	switch option {
	case 1:
		return 5
	case 2:
		return 10
	}
	return 0
}

// Alarm is the pre-actuation countdown. The zero value is idle.
type Alarm struct {
	Ticks   int
	Command Command
	Tone    bool
}

// Counting reports whether a countdown is in progress.
func (a Alarm) Counting() bool {
	return a.Ticks > 0
}

// AlarmEffect is what one tick asks the hardware to do.
type AlarmEffect struct {
	Tone    bool
	Fire    bool
	Command Command
}

// ArmAlarm starts a countdown of the given length. Arming while counting
// leaves the running countdown untouched.
func ArmAlarm(a Alarm, seconds int, cmd Command) Alarm {
	if a.Counting() || seconds <= 0 {
		return a
	}
	return Alarm{Ticks: seconds*2 + 1, Command: cmd}
}

// TickAlarm advances the countdown by one half-second tick.
func TickAlarm(a Alarm) (Alarm, AlarmEffect) {
	if !a.Counting() {
		return a, AlarmEffect{}
	}
	a.Ticks--
	a.Tone = !a.Tone
	if a.Ticks == 0 {
		return Alarm{}, AlarmEffect{Fire: true, Command: a.Command}
	}
	return a, AlarmEffect{Tone: a.Tone}
}
