//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported")

// RealHardware is not available on non-Linux platforms.
type RealHardware struct{}

// NewRealHardware returns an error on non-Linux platforms.
func NewRealHardware(pins Pins, onEdge EdgeFunc, onButton ButtonFunc) (*RealHardware, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Pulse is not implemented on non-Linux platforms.
func (h *RealHardware) Pulse() error { return errUnsupported }

// ReadSwitch is not implemented on non-Linux platforms.
func (h *RealHardware) ReadSwitch() (bool, error) { return false, errUnsupported }

// Click is not implemented on non-Linux platforms.
func (h *RealHardware) Click(d time.Duration) error { return errUnsupported }

// Tone is not implemented on non-Linux platforms.
func (h *RealHardware) Tone(on bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (h *RealHardware) Close() error {
	return nil
}
