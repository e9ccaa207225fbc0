// Package logic contains pure door-status logic: sensor fusion, debounced
// event classification and vehicle presence.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

// DoorStatus is the canonical door state. Values are persisted in the event log.
type DoorStatus int

const (
	StatusClosed DoorStatus = iota
	StatusOpen
	StatusStopped
	StatusClosing
	StatusOpening
	StatusUnknown
)

func (s DoorStatus) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	case StatusStopped:
		return "STOPPED"
	case StatusClosing:
		return "CLOSING"
	case StatusOpening:
		return "OPENING"
	}
	return "UNKNOWN"
}

// DoorEvent classifies the latest status against history.
type DoorEvent int

const (
	EventRemainClosed DoorEvent = iota
	EventRemainOpen
	EventJustOpened
	EventJustClosed
	EventNone
	EventRemainStopped
	EventJustStopped
	EventStillOpening
	EventStartOpening
	EventStillClosing
	EventStartClosing
)

var eventNames = [...]string{
	"REMAIN_CLOSED", "REMAIN_OPEN", "JUST_OPENED", "JUST_CLOSED", "NONE",
	"REMAIN_STOPPED", "JUST_STOPPED", "STILL_OPENING", "START_OPENING",
	"STILL_CLOSING", "START_CLOSING",
}

func (e DoorEvent) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "NONE"
}

// IsTransition reports whether the event is one that gets logged.
func (e DoorEvent) IsTransition() bool {
	return e == EventJustOpened || e == EventJustClosed || e == EventJustStopped
}

// IsChange reports whether the event marks any status change, including the
// start of motion.
func (e DoorEvent) IsChange() bool {
	return e.IsTransition() || e == EventStartOpening || e == EventStartClosing
}

// Mount is the distance sensor orientation.
type Mount int

const (
	MountCeiling Mount = iota
	MountSide
)

// SwitchType is the optional secondary switch sensor.
type SwitchType int

const (
	SwitchNone SwitchType = iota
	SwitchNormallyClosed
	SwitchNormallyOpen
)

// CombineLogic fuses primary and secondary sensors.
type CombineLogic int

const (
	PrimaryOnly CombineLogic = iota
	SecondaryOnly
	And
	Or
)

// Vehicle is the derived occupancy.
type Vehicle int

const (
	VehicleAbsent Vehicle = iota
	VehiclePresent
	VehicleUnknown
	VehicleNotAvailable
)

func (v Vehicle) String() string {
	switch v {
	case VehicleAbsent:
		return "ABSENT"
	case VehiclePresent:
		return "PRESENT"
	case VehicleUnknown:
		return "UNKNOWN"
	}
	return "N/A"
}

// MaxDistance is the largest distance (cm) considered a valid reading.
const MaxDistance = 500

// SensorConfig is the static tuning of the status engine.
type SensorConfig struct {
	Mount            Mount
	Switch           SwitchType
	Logic            CombineLogic
	DoorThreshold    uint // cm
	VehicleThreshold uint // cm; 0 disables vehicle detection
	// External selects the protocol-decoder status source.
	External bool
}

// EffectiveLogic is the combine logic actually applied: without a switch
// sensor only the primary sensor can be used.
func (c SensorConfig) EffectiveLogic() CombineLogic {
	if c.Switch == SwitchNone {
		return PrimaryOnly
	}
	return c.Logic
}

// NeedsPrimary reports whether a status decision depends on the distance
// sensor, so an invalid reading must abort the cycle.
func (c SensorConfig) NeedsPrimary() bool {
	return !c.External && c.EffectiveLogic() != SecondaryOnly
}

// Input is one evaluation-cycle sample.
type Input struct {
	Distance uint // cm
	// DistanceValid is false when the reading is zero, out of range, or the
	// sample window has never filled.
	DistanceValid bool
	// Switch is the raw switch level (true = high).
	Switch bool
	// ExternalStatus is used when SensorConfig.External is set.
	ExternalStatus DoorStatus
}

// Result is the outcome of one evaluation cycle.
type Result struct {
	Status  DoorStatus
	Event   DoorEvent
	Vehicle Vehicle
	// Skipped is set when the cycle aborted on an invalid reading; Status and
	// Vehicle then carry the retained values.
	Skipped bool
}
