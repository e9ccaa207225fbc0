// Package protocol talks to an external door-opener decoder that reports the
// door, light and lock state directly and accepts commands. When a decoder is
// active it replaces the distance/switch status source.
package protocol

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sweeney/garage-controller/internal/logic"
)

// ErrNotDetected is returned when no decoder answers.
var ErrNotDetected = errors.New("protocol: decoder not detected")

// Version is the decoder generation.
type Version int

const (
	// VersionNone means no decoder is configured.
	VersionNone Version = iota
	// VersionToggle decoders only toggle the door.
	VersionToggle
	// VersionDirect decoders open and close explicitly.
	VersionDirect
)

// DirectOpenClose reports whether open and close are issued as such rather
// than as toggles.
func (v Version) DirectOpenClose() bool {
	return v == VersionDirect
}

// State is one observation from the decoder.
type State struct {
	Door        logic.DoorStatus
	Light       bool
	Lock        bool
	Obstruction bool
	Openings    uint32
}

// Command is an action sent to the decoder.
type Command int

const (
	CommandToggle Command = iota
	CommandOpen
	CommandClose
	CommandToggleLight
	CommandToggleLock
)

func (c Command) String() string {
	switch c {
	case CommandOpen:
		return "open"
	case CommandClose:
		return "close"
	case CommandToggleLight:
		return "togglelight"
	case CommandToggleLock:
		return "togglelock"
	}
	return "toggle"
}

// Decoder is the external decoder capability.
type Decoder interface {
	// Start begins the session; every observed state is passed to onState.
	Start(ctx context.Context, onState func(State)) error
	// Detect checks that a decoder answers and returns its generation.
	Detect(ctx context.Context) (Version, error)
	// Reset restarts the decoder session.
	Reset() error
	// Send issues a command.
	Send(cmd Command) error
	Close() error
}

// Cell holds the latest observed state. The decoder writes it from its own
// goroutine; the status cycle polls it once per evaluation.
type Cell struct {
	mu      sync.RWMutex
	state   State
	updated time.Time
	seen    bool
}

// Set stores s as the latest state.
func (c *Cell) Set(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.updated = time.Now()
	c.seen = true
}

// Latest returns the last state and whether any state has arrived.
func (c *Cell) Latest() (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.seen
}

// Updated returns when the last state arrived.
func (c *Cell) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Clear forgets the stored state.
func (c *Cell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	c.seen = false
	c.updated = time.Time{}
}
