package gpio

import (
	"sync"
	"time"
)

// FakeHardware is a test double that echoes scripted round-trip times and
// records actuator activity.
type FakeHardware struct {
	mu sync.Mutex

	// Echoes contains scripted round-trip times in microseconds. Each Pulse
	// consumes the next one; the last is repeated once exhausted. A zero
	// entry simulates a lost echo (no edges).
	Echoes []uint32
	index  int

	// Switch is the raw switch level returned by ReadSwitch.
	Switch bool

	// Clicks records every relay click duration.
	Clicks []time.Duration

	// Tones records every buzzer change.
	Tones []bool

	// Closed tracks if Close was called.
	Closed bool

	// PulseError and ReadError, if set, are returned by Pulse and ReadSwitch.
	PulseError error
	ReadError  error

	onEdge   EdgeFunc
	onButton ButtonFunc
	clock    time.Duration
}

// NewFakeHardware creates a FakeHardware that delivers edges to onEdge
// synchronously from Pulse.
func NewFakeHardware(echoes []uint32, onEdge EdgeFunc) *FakeHardware {
	return &FakeHardware{Echoes: echoes, onEdge: onEdge}
}

// SetEdgeFunc replaces the edge callback.
func (f *FakeHardware) SetEdgeFunc(fn EdgeFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEdge = fn
}

// SetButtonFunc sets the push button callback.
func (f *FakeHardware) SetButtonFunc(fn ButtonFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onButton = fn
}

// Press holds the push button for d: a press edge followed by a release
// edge d later on the fake event clock. Edges are delivered synchronously.
func (f *FakeHardware) Press(d time.Duration) {
	f.mu.Lock()
	fn := f.onButton
	f.clock += time.Millisecond
	down := f.clock
	f.clock += d
	up := f.clock
	f.mu.Unlock()

	if fn == nil {
		return
	}
	fn(true, down)
	fn(false, up)
}

// Pulse emits the next scripted echo as a rising and falling edge pair.
func (f *FakeHardware) Pulse() error {
	f.mu.Lock()
	if f.PulseError != nil {
		err := f.PulseError
		f.mu.Unlock()
		return err
	}
	if len(f.Echoes) == 0 {
		f.mu.Unlock()
		return nil
	}
	us := f.Echoes[f.index]
	if f.index < len(f.Echoes)-1 {
		f.index++
	}
	fn := f.onEdge
	f.clock += time.Millisecond
	start := f.clock
	f.clock += time.Duration(us) * time.Microsecond
	end := f.clock
	f.mu.Unlock()

	if us == 0 || fn == nil {
		return nil
	}
	fn(true, start)
	fn(false, end)
	return nil
}

// ReadSwitch returns the scripted switch level.
func (f *FakeHardware) ReadSwitch() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Switch, nil
}

// SetSwitch changes the switch level.
func (f *FakeHardware) SetSwitch(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Switch = v
}

// SetEchoes replaces the scripted echoes and restarts from the first.
func (f *FakeHardware) SetEchoes(echoes []uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Echoes = echoes
	f.index = 0
}

// Click records the relay click.
func (f *FakeHardware) Click(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clicks = append(f.Clicks, d)
	return nil
}

// ClickCount returns the number of relay clicks so far.
func (f *FakeHardware) ClickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Clicks)
}

// Tone records the buzzer change.
func (f *FakeHardware) Tone(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tones = append(f.Tones, on)
	return nil
}

// Close marks the hardware as closed.
func (f *FakeHardware) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
