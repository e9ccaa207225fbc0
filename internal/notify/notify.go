// Package notify delivers notification text to the configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/options"
)

// Sink delivers one notification.
type Sink interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Dispatcher sends to every sink. A failing sink does not stop the others.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher constructs a Dispatcher. nil sinks are skipped.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sinks)
}

// Names returns the sink names in order.
func (d *Dispatcher) Names() []string {
	if d == nil {
		return nil
	}
	var names []string
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Send forwards text to all sinks and joins their errors.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, text); err != nil {
			log.Warn().Err(err).Str("channel", s.Name()).Msg("notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Debug().Str("channel", s.Name()).Str("text", text).Msg("notification sent")
	}
	return errors.Join(errs...)
}

// MinIFTTTKeyLen is the shortest key treated as configured.
const MinIFTTTKeyLen = 8

// FromOptions builds the sinks enabled by o. pub may be nil when MQTT is
// not connected.
func FromOptions(o *options.Options, pub Publisher) []Sink {
	var sinks []Sink

	if key := o.Str(options.IFTTTKey); len(key) >= MinIFTTTKeyLen {
		if ch, err := NewIFTTT(key); err == nil {
			sinks = append(sinks, ch)
		}
	}

	if o.Bool(options.EmailEnable) {
		ch, err := NewEmail(EmailConfig{
			Host:      o.Str(options.SMTPServer),
			Port:      o.Int(options.SMTPPort),
			Sender:    o.Str(options.SMTPSender),
			Password:  o.Str(options.SMTPPassword),
			Recipient: o.Str(options.Recipient),
			Subject:   o.Str(options.Name),
		})
		if err != nil {
			log.Warn().Err(err).Msg("e-mail notifications disabled")
		} else {
			sinks = append(sinks, ch)
		}
	}

	if o.Bool(options.MQTTEnable) && o.Str(options.MQTTServer) != "" && pub != nil {
		sinks = append(sinks, NewMQTT(pub))
	}
	return sinks
}
