// Package automation decides when to notify and when to move the door.
// Each state machine is an explicit transition function over a value state
// so the tables can be tested without hardware.
package automation

import (
	"fmt"
	"time"

	"github.com/sweeney/garage-controller/internal/logic"
)

// Rule is a bit set of actions taken when a policy triggers.
type Rule uint8

const (
	RuleNone   Rule = 0
	RuleNotify Rule = 1 << 0
	RuleClose  Rule = 1 << 1
)

// NotifyMask selects which transitions send a notification.
type NotifyMask uint8

const (
	NotifyOpen  NotifyMask = 1 << 0
	NotifyClose NotifyMask = 1 << 1
	NotifyStop  NotifyMask = 1 << 2
)

// Config holds both policies and the transition notification mask.
type Config struct {
	Name string
	// Policy A: door left open for IntervalMinutes.
	IntervalMinutes int
	IntervalRule    Rule
	// Policy B: door open during UTC hour Hour.
	Hour     int
	HourRule Rule
	Notify   NotifyMask
}

func (c Config) idle() bool {
	return c.IntervalRule == RuleNone && c.HourRule == RuleNone && c.Notify == 0
}

// State is the automation memory carried across cycles.
type State struct {
	// OpenSince is a UTC unix timestamp; 0 means unset.
	OpenSince int64
	// HourLatched suppresses policy B for the rest of its hour.
	HourLatched bool
}

// Effects are the side effects requested by one Step.
type Effects struct {
	Messages []string
	Close    bool
}

func (e *Effects) apply(r Rule, msg string) {
	if r&RuleNotify != 0 {
		if r&RuleClose != 0 {
			msg += " It will be auto-closed shortly."
		} else {
			msg += " This is a reminder for you."
		}
		e.Messages = append(e.Messages, msg)
	}
	if r&RuleClose != 0 {
		e.Close = true
	}
}

// Step advances the automation state for one classified event.
func Step(cfg Config, st State, ev logic.DoorEvent, now time.Time) (State, Effects) {
	var fx Effects
	if cfg.idle() {
		st.OpenSince = 0
		return st, fx
	}

	unix := now.Unix()
	hour := now.UTC().Hour()
	if st.HourLatched && hour != cfg.Hour {
		st.HourLatched = false
	}

	switch ev {
	case logic.EventJustOpened:
		st.OpenSince = unix
		if cfg.Notify&NotifyOpen != 0 {
			fx.Messages = append(fx.Messages, cfg.Name+" just OPENED!")
		}
		// opened by hand during the policy hour: do not close it again this hour
		if hour == cfg.Hour {
			st.HourLatched = true
		}

	case logic.EventJustClosed:
		st.OpenSince = 0
		if cfg.Notify&NotifyClose != 0 {
			fx.Messages = append(fx.Messages, cfg.Name+" just CLOSED!")
		}

	case logic.EventJustStopped:
		st.OpenSince = 0
		if cfg.Notify&NotifyStop != 0 {
			fx.Messages = append(fx.Messages, cfg.Name+" just STOPPED!")
		}

	case logic.EventRemainOpen:
		if st.OpenSince == 0 {
			st.OpenSince = unix
		}
		if cfg.IntervalRule != RuleNone && cfg.IntervalMinutes > 0 &&
			unix-st.OpenSince >= int64(cfg.IntervalMinutes)*60 {
			fx.apply(cfg.IntervalRule, fmt.Sprintf("%s is left open for more than %d minutes.", cfg.Name, cfg.IntervalMinutes))
			st.OpenSince = 0
		}
		if cfg.HourRule != RuleNone && hour == cfg.Hour && !st.HourLatched {
			st.HourLatched = true
			fx.apply(cfg.HourRule, fmt.Sprintf("%s is open after %d UTC. Current hour: %d.", cfg.Name, cfg.Hour, hour))
			st.OpenSince = 0
		}

	default:
		st.OpenSince = 0
	}
	return st, fx
}

// Engine owns the automation state across cycles.
type Engine struct {
	cfg   Config
	state State
}

// NewEngine creates an engine with empty state.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// SetConfig replaces the policies, keeping state.
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
}

// State returns the current automation state.
func (e *Engine) State() State {
	return e.state
}

// Process runs Step and keeps the new state.
func (e *Engine) Process(ev logic.DoorEvent, now time.Time) Effects {
	var fx Effects
	e.state, fx = Step(e.cfg, e.state, ev, now)
	return fx
}
