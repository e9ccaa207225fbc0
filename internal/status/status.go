// Package status provides a thread-safe status tracker for the garage
// controller. It is written by the control loop and read by HTTP handlers
// and the MQTT publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/garage-controller/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Firmware        int
	ReadIntervalS   int
	Broker          string
	HTTPAddr        string
	SwitchInstalled bool
	Decoder         int // 0 none, 1 toggle-only, 2 direct open/close
	Climate         int // tsn; 0 when no climate sensor is fitted
}

// Counts tallies classified events since start.
type Counts struct {
	Opened  int
	Closed  int
	Stopped int
	Skipped int
}

// Door is the result of one evaluation cycle.
type Door struct {
	Status        logic.DoorStatus
	Event         logic.DoorEvent
	Vehicle       logic.Vehicle
	Distance      uint
	Stale         bool
	LowConfidence bool
	Switch        bool
	Light         bool
	Lock          bool
	Obstruction   bool
	Openings      uint32
	// DecoderSeen is when the external decoder last reported; zero without one.
	DecoderSeen   time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Name           string
	Door           Door
	Baselined      bool
	ReadCount      int
	AlarmTicks     int
	LastTransition time.Time
	Counts         Counts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config

	// Last good climate reading; kept across failed reads.
	TempC    float64
	Humidity float64
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, name string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Name:      name,
			StartTime: startTime,
			Config:    cfg,
			Door: Door{
				Status:  logic.StatusUnknown,
				Event:   logic.EventNone,
				Vehicle: logic.VehicleNotAvailable,
			},
		},
	}
}

// Update records one evaluated cycle. Called from the control loop on every
// status tick that produced a reading.
func (t *Tracker) Update(d Door, baselined bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Door = d
	t.snap.Baselined = baselined
	t.snap.ReadCount = (t.snap.ReadCount + 1) % 100
	switch d.Event {
	case logic.EventJustOpened:
		t.snap.Counts.Opened++
	case logic.EventJustClosed:
		t.snap.Counts.Closed++
	case logic.EventJustStopped:
		t.snap.Counts.Stopped++
	}
	if d.Event.IsChange() {
		t.snap.LastTransition = at
	}
}

// Skipped counts a cycle aborted for an invalid reading.
func (t *Tracker) Skipped() {
	t.mu.Lock()
	t.snap.Counts.Skipped++
	t.mu.Unlock()
}

// SetAlarm records the remaining alarm ticks.
func (t *Tracker) SetAlarm(ticks int) {
	t.mu.Lock()
	t.snap.AlarmTicks = ticks
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetClimate records a climate reading.
func (t *Tracker) SetClimate(tempC, humidity float64) {
	t.mu.Lock()
	t.snap.TempC = tempC
	t.snap.Humidity = humidity
	t.mu.Unlock()
}

// SetConfig replaces the displayed name and configuration after an options change.
func (t *Tracker) SetConfig(name string, cfg Config) {
	t.mu.Lock()
	t.snap.Name = name
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
