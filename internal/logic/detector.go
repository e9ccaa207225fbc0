package logic

// HistoryDepth is the number of significant bits in the sensor-fusion
// status history.
const HistoryDepth = 4

const (
	histAll  uint8 = 1<<HistoryDepth - 1           // 0b1111
	histLow  uint8 = 1<<(HistoryDepth/2) - 1       // 0b0011
	histHigh uint8 = histLow << (HistoryDepth / 2) // 0b1100
)

// Engine derives the door status and event once per evaluation cycle.
type Engine struct {
	cfg       SensorConfig
	status    DoorStatus
	last      DoorStatus
	hist      uint8
	vehicle   Vehicle
	baselined bool
}

// NewEngine creates an engine with no history.
func NewEngine(cfg SensorConfig) *Engine {
	return &Engine{
		cfg:     cfg,
		status:  StatusUnknown,
		last:    StatusUnknown,
		vehicle: VehicleNotAvailable,
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() SensorConfig {
	return e.cfg
}

// SetConfig replaces the configuration. Switching status source resets the
// history so the next cycle re-baselines.
func (e *Engine) SetConfig(cfg SensorConfig) {
	if cfg.External != e.cfg.External {
		e.baselined = false
	}
	e.cfg = cfg
}

// Status returns the current status.
func (e *Engine) Status() DoorStatus {
	return e.status
}

// Vehicle returns the last vehicle estimate.
func (e *Engine) Vehicle() Vehicle {
	return e.vehicle
}

// IsBaselined reports whether at least one cycle has set the status.
func (e *Engine) IsBaselined() bool {
	return e.baselined
}

// Evaluate runs one cycle: fuse sensors (or take the external status),
// update history and classify.
func (e *Engine) Evaluate(in Input) Result {
	if !in.DistanceValid && e.cfg.NeedsPrimary() {
		return Result{Status: e.status, Event: EventNone, Vehicle: e.vehicle, Skipped: true}
	}

	e.last = e.status
	primary := PrimaryOpen(e.cfg, in.Distance)
	if in.DistanceValid {
		e.vehicle = EstimateVehicle(e.cfg, in.Distance, primary)
	}

	if e.cfg.External {
		e.status = in.ExternalStatus
	} else if Fuse(e.cfg, primary, in.Switch) {
		e.status = StatusOpen
	} else {
		e.status = StatusClosed
	}

	if !e.baselined {
		e.baselined = true
		e.last = e.status
		if e.status == StatusOpen {
			e.hist = 0xFF
		} else {
			e.hist = 0
		}
	} else if !e.cfg.External {
		e.hist = e.hist<<1 | boolBit(e.status == StatusOpen)
	}

	var ev DoorEvent
	if e.cfg.External {
		ev = ClassifyTransition(e.last, e.status)
	} else {
		ev = ClassifyHistory(e.hist)
	}
	return Result{Status: e.status, Event: ev, Vehicle: e.vehicle}
}

// PrimaryOpen reports whether the distance sensor alone says open.
func PrimaryOpen(cfg SensorConfig, distance uint) bool {
	open := distance <= cfg.DoorThreshold
	if cfg.Mount == MountSide {
		return !open
	}
	return open
}

// SecondaryOpen applies switch polarity. An absent switch never reads open.
func SecondaryOpen(t SwitchType, level bool) bool {
	switch t {
	case SwitchNormallyClosed:
		return level
	case SwitchNormallyOpen:
		return !level
	}
	return false
}

// Fuse combines the primary reading and the raw switch level per config.
func Fuse(cfg SensorConfig, primary, switchLevel bool) bool {
	secondary := SecondaryOpen(cfg.Switch, switchLevel)
	switch cfg.EffectiveLogic() {
	case SecondaryOnly:
		return secondary
	case And:
		return primary && secondary
	case Or:
		return primary || secondary
	}
	return primary
}

// ClassifyHistory matches the low HistoryDepth bits of a sensor-fusion
// history register (newest sample in bit 0).
func ClassifyHistory(hist uint8) DoorEvent {
	switch hist & histAll {
	case 0:
		return EventRemainClosed
	case histAll:
		return EventRemainOpen
	case histLow:
		return EventJustOpened
	case histHigh:
		return EventJustClosed
	}
	return EventNone
}

// ClassifyTransition compares two discrete statuses from the protocol path.
func ClassifyTransition(prev, curr DoorStatus) DoorEvent {
	if prev >= StatusUnknown || curr >= StatusUnknown || prev < 0 || curr < 0 {
		return EventNone
	}
	if prev == curr {
		switch curr {
		case StatusClosed:
			return EventRemainClosed
		case StatusOpen:
			return EventRemainOpen
		case StatusStopped:
			return EventRemainStopped
		case StatusClosing:
			return EventStillClosing
		case StatusOpening:
			return EventStillOpening
		}
	}
	switch curr {
	case StatusClosed:
		return EventJustClosed
	case StatusOpen:
		return EventJustOpened
	case StatusStopped:
		return EventJustStopped
	case StatusClosing:
		return EventStartClosing
	case StatusOpening:
		return EventStartOpening
	}
	return EventNone
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
