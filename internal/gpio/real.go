//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealHardware drives the sensor and actuator lines through the Linux GPIO
// character device.
type RealHardware struct {
	chip    *gpiocdev.Chip
	trigger *gpiocdev.Line
	echo    *gpiocdev.Line
	sw      *gpiocdev.Line
	relay   *gpiocdev.Line
	buzzer  *gpiocdev.Line
	button  *gpiocdev.Line
}

// ButtonDebounce is the kernel debounce period on the push button line.
const ButtonDebounce = 10 * time.Millisecond

// NewRealHardware requests every line in pins. Echo edges are delivered to
// onEdge and push button edges to onButton, both with kernel timestamps.
// The button line is skipped when pins has none or onButton is nil.
func NewRealHardware(pins Pins, onEdge EdgeFunc, onButton ButtonFunc) (*RealHardware, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	h := &RealHardware{chip: chip}

	if h.trigger, err = chip.RequestLine(pins.Trigger, gpiocdev.AsOutput(0)); err != nil {
		h.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", pins.Trigger, err)
	}

	handler := func(evt gpiocdev.LineEvent) {
		onEdge(evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
	}
	if h.echo, err = chip.RequestLine(pins.Echo,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler)); err != nil {
		h.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", pins.Echo, err)
	}

	// Reed switches pull the line to ground when closed.
	if h.sw, err = chip.RequestLine(pins.Switch, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		h.Close()
		return nil, fmt.Errorf("request switch pin %d: %w", pins.Switch, err)
	}

	if h.relay, err = chip.RequestLine(pins.Relay, gpiocdev.AsOutput(0)); err != nil {
		h.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pins.Relay, err)
	}

	if h.buzzer, err = chip.RequestLine(pins.Buzzer, gpiocdev.AsOutput(0)); err != nil {
		h.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pins.Buzzer, err)
	}

	if pins.HasButton() && onButton != nil {
		// The button pulls the line to ground while held.
		press := func(evt gpiocdev.LineEvent) {
			onButton(evt.Type == gpiocdev.LineEventFallingEdge, evt.Timestamp)
		}
		if h.button, err = chip.RequestLine(pins.Button,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(ButtonDebounce),
			gpiocdev.WithEventHandler(press)); err != nil {
			h.Close()
			return nil, fmt.Errorf("request button pin %d: %w", pins.Button, err)
		}
	}

	return h, nil
}

// Pulse drives the trigger high for TriggerWidth.
func (h *RealHardware) Pulse() error {
	if err := h.trigger.SetValue(1); err != nil {
		return fmt.Errorf("set trigger: %w", err)
	}
	time.Sleep(TriggerWidth)
	if err := h.trigger.SetValue(0); err != nil {
		return fmt.Errorf("clear trigger: %w", err)
	}
	return nil
}

// ReadSwitch returns the raw switch level.
func (h *RealHardware) ReadSwitch() (bool, error) {
	v, err := h.sw.Value()
	if err != nil {
		return false, fmt.Errorf("read switch pin: %w", err)
	}
	return v == 1, nil
}

// Click energises the relay for d. It blocks for the whole click.
func (h *RealHardware) Click(d time.Duration) error {
	if err := h.relay.SetValue(1); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	time.Sleep(d)
	if err := h.relay.SetValue(0); err != nil {
		return fmt.Errorf("release relay: %w", err)
	}
	return nil
}

// Tone switches the buzzer.
func (h *RealHardware) Tone(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := h.buzzer.SetValue(v); err != nil {
		return fmt.Errorf("set buzzer: %w", err)
	}
	return nil
}

// Close releases GPIO resources.
// Outputs are driven low and every line is returned to an input with
// pull-down before closing so the relay cannot latch during reboot.
func (h *RealHardware) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{
		{"trigger", h.trigger},
		{"echo", h.echo},
		{"switch", h.sw},
		{"relay", h.relay},
		{"buzzer", h.buzzer},
		{"button", h.button},
	} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
