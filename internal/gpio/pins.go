package gpio

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pins maps each function to a line offset on one GPIO chip. A negative
// Button means no push button is fitted.
type Pins struct {
	Chip    string `yaml:"chip"`
	Trigger int    `yaml:"trigger"`
	Echo    int    `yaml:"echo"`
	Switch  int    `yaml:"switch"`
	Relay   int    `yaml:"relay"`
	Buzzer  int    `yaml:"buzzer"`
	Button  int    `yaml:"button"`
}

// HasButton reports whether a push button line is configured.
func (p Pins) HasButton() bool {
	return p.Button >= 0
}

// DefaultPins is the wiring used when no pin map is given (BCM numbering).
func DefaultPins() Pins {
	return Pins{
		Chip:    "gpiochip0",
		Trigger: 23,
		Echo:    24,
		Switch:  25,
		Relay:   17,
		Buzzer:  18,
		Button:  22,
	}
}

// LoadPins reads a YAML pin map over the defaults. An empty path returns the
// defaults.
func LoadPins(path string) (Pins, error) {
	p := DefaultPins()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pin map: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse pin map: %w", err)
	}
	return p, p.Validate()
}

// Validate rejects negative offsets and lines used twice.
func (p Pins) Validate() error {
	if p.Chip == "" {
		return errors.New("gpio: chip name required")
	}
	lines := map[string]int{
		"trigger": p.Trigger,
		"echo":    p.Echo,
		"switch":  p.Switch,
		"relay":   p.Relay,
		"buzzer":  p.Buzzer,
	}
	if p.HasButton() {
		lines["button"] = p.Button
	}
	seen := map[int]string{}
	for name, off := range lines {
		if off < 0 {
			return fmt.Errorf("gpio: %s offset %d is negative", name, off)
		}
		if other, ok := seen[off]; ok {
			return fmt.Errorf("gpio: %s and %s share line %d", name, other, off)
		}
		seen[off] = name
	}
	return nil
}
