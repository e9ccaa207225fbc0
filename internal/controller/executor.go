package controller

import (
	"fmt"
	"time"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/protocol"
)

// relayExecutor moves the door with a relay click.
type relayExecutor struct {
	hw    gpio.Hardware
	click time.Duration
}

func (e relayExecutor) Execute(cmd automation.Command) error {
	if err := e.hw.Click(e.click); err != nil {
		return fmt.Errorf("relay click: %w", err)
	}
	return nil
}

// decoderExecutor moves the door through the external decoder. Toggle-only
// decoders receive every command as a toggle.
type decoderExecutor struct {
	dec     protocol.Decoder
	version protocol.Version
}

func (e decoderExecutor) Execute(cmd automation.Command) error {
	out := protocol.CommandToggle
	if e.version.DirectOpenClose() {
		switch cmd {
		case automation.CommandOpen:
			out = protocol.CommandOpen
		case automation.CommandClose:
			out = protocol.CommandClose
		}
	}
	if err := e.dec.Send(out); err != nil {
		return fmt.Errorf("decoder %s: %w", out, err)
	}
	return nil
}

func newExecutor(s Settings, hw gpio.Hardware, dec protocol.Decoder) automation.Executor {
	if s.Decoder != protocol.VersionNone && dec != nil {
		return decoderExecutor{dec: dec, version: s.Decoder}
	}
	return relayExecutor{hw: hw, click: s.ClickTime}
}
