// Package gpio provides the garage sensor and actuator lines with hardware
// abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// EdgeFunc receives echo line edges. ts is the kernel event timestamp.
// It runs on the line's event goroutine and must not block.
type EdgeFunc func(rising bool, ts time.Duration)

// ButtonFunc receives push button edges. pressed is true when the button
// goes down. Same context rules as EdgeFunc.
type ButtonFunc func(pressed bool, ts time.Duration)

// Hardware is the sensor and actuator capability set the controller drives.
type Hardware interface {
	// Pulse emits one ranging trigger pulse.
	Pulse() error

	// ReadSwitch returns the raw level of the door switch (true = high).
	ReadSwitch() (bool, error)

	// Click closes the door relay for d.
	Click(d time.Duration) error

	// Tone turns the buzzer on or off.
	Tone(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// TriggerWidth is the ranging trigger pulse length.
const TriggerWidth = 10 * time.Microsecond
