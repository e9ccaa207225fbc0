package automation

import (
	"errors"
	"fmt"

	"github.com/sweeney/garage-controller/internal/logic"
)

// ErrIllegalAction is returned when a command cannot apply to the current door status.
var ErrIllegalAction = errors.New("action not legal for current door status")

// Legal reports whether cmd may be issued while the door is in status.
// direct is set when the actuator can open and close explicitly regardless
// of the current status.
func Legal(cmd Command, status logic.DoorStatus, direct bool) bool {
	if direct {
		return true
	}
	switch cmd {
	case CommandToggle:
		return true
	case CommandOpen:
		return status == logic.StatusClosed || status == logic.StatusClosing
	case CommandClose:
		return status == logic.StatusOpen || status == logic.StatusStopped
	}
	return false
}

// Executor physically moves the door.
type Executor interface {
	Execute(cmd Command) error
}

// Buzzer sounds the alarm tone.
type Buzzer interface {
	Tone(on bool) error
}

// AlarmMode says how a request treats the alarm.
type AlarmMode int

const (
	// AlarmDefault follows the configured alarm settings.
	AlarmDefault AlarmMode = iota
	// AlarmOff bypasses the alarm (local or manual actuation).
	AlarmOff
	// AlarmRequired always sounds the alarm (automation).
	AlarmRequired
)

// Outcome is the result of a Request.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeExecuted
	OutcomeArmed
	OutcomeAlreadyArmed
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExecuted:
		return "executed"
	case OutcomeArmed:
		return "armed"
	case OutcomeAlreadyArmed:
		return "already_armed"
	case OutcomeDropped:
		return "dropped"
	}
	return "rejected"
}

// ActuatorConfig tunes the actuator.
type ActuatorConfig struct {
	AlarmSeconds    int
	NoAlarmOnOpen   bool
	DirectOpenClose bool
}

// Actuator validates door commands and runs them, optionally after an
// alarm countdown.
type Actuator struct {
	cfg    ActuatorConfig
	exec   Executor
	buzzer Buzzer
	alarm  Alarm
}

// NewActuator creates an actuator. buzzer may be nil.
func NewActuator(cfg ActuatorConfig, exec Executor, buzzer Buzzer) *Actuator {
	return &Actuator{cfg: cfg, exec: exec, buzzer: buzzer}
}

// SetConfig replaces the configuration.
func (a *Actuator) SetConfig(cfg ActuatorConfig) {
	a.cfg = cfg
}

// SetExecutor swaps the executor (e.g. when the protocol decoder changes).
func (a *Actuator) SetExecutor(exec Executor) {
	a.exec = exec
}

// Alarm returns the current countdown state.
func (a *Actuator) Alarm() Alarm {
	return a.alarm
}

func (a *Actuator) soundAlarm(status logic.DoorStatus, mode AlarmMode) bool {
	switch mode {
	case AlarmOff:
		return false
	case AlarmRequired:
		return true
	}
	if a.cfg.AlarmSeconds <= 0 {
		return false
	}
	if a.cfg.NoAlarmOnOpen &&
		(status == logic.StatusClosed || status == logic.StatusClosing || status == logic.StatusOpening) {
		return false
	}
	return true
}

// Request validates cmd against status and either executes it or arms the alarm.
func (a *Actuator) Request(cmd Command, status logic.DoorStatus, mode AlarmMode) (Outcome, error) {
	if !Legal(cmd, status, a.cfg.DirectOpenClose) {
		return OutcomeRejected, fmt.Errorf("%s while %s: %w", cmd, status, ErrIllegalAction)
	}

	if a.soundAlarm(status, mode) {
		if a.alarm.Counting() {
			return OutcomeAlreadyArmed, nil
		}
		secs := a.cfg.AlarmSeconds
		if secs <= 0 {
			secs = DefaultAutoCloseAlarm
		}
		a.alarm = ArmAlarm(a.alarm, secs, cmd)
		return OutcomeArmed, nil
	}

	if err := a.exec.Execute(cmd); err != nil {
		return OutcomeRejected, fmt.Errorf("execute %s: %w", cmd, err)
	}
	return OutcomeExecuted, nil
}

// Tick advances the alarm by one half-second. When the countdown ends the
// queued command is checked against status again and executed only if it is
// still legal; otherwise it is dropped and ErrIllegalAction is returned.
// Reports whether a command fired.
func (a *Actuator) Tick(status logic.DoorStatus) (bool, error) {
	if !a.alarm.Counting() {
		return false, nil
	}
	var fx AlarmEffect
	a.alarm, fx = TickAlarm(a.alarm)

	var errs []error
	if a.buzzer != nil {
		if err := a.buzzer.Tone(fx.Tone); err != nil {
			errs = append(errs, fmt.Errorf("buzzer: %w", err))
		}
	}
	if !fx.Fire {
		return false, errors.Join(errs...)
	}
	if !Legal(fx.Command, status, a.cfg.DirectOpenClose) {
		errs = append(errs, fmt.Errorf("%s while %s: %w", fx.Command, status, ErrIllegalAction))
		return false, errors.Join(errs...)
	}
	if err := a.exec.Execute(fx.Command); err != nil {
		errs = append(errs, fmt.Errorf("execute %s: %w", fx.Command, err))
	}
	return true, errors.Join(errs...)
}

// Cancel stops a running countdown and silences the buzzer.
func (a *Actuator) Cancel() error {
	if !a.alarm.Counting() {
		return nil
	}
	a.alarm = Alarm{}
	if a.buzzer != nil {
		return a.buzzer.Tone(false)
	}
	return nil
}
