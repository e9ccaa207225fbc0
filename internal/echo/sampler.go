package echo

import (
	"context"
	"fmt"
	"time"
)

// DefaultPeriod is the default trigger period.
const DefaultPeriod = 500 * time.Millisecond

// Pulser emits one ranging pulse.
type Pulser interface {
	Pulse() error
}

// Sampler triggers the ranging sensor on a fixed period and feeds echo edges
// into its Window.
type Sampler struct {
	window *Window
	pulser Pulser
	period time.Duration
}

// NewSampler creates a Sampler. A non-positive period selects DefaultPeriod.
func NewSampler(w *Window, p Pulser, period time.Duration) *Sampler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Sampler{window: w, pulser: p, period: period}
}

// Window returns the sampler's window.
func (s *Sampler) Window() *Window {
	return s.window
}

// Trigger arms a capture (recovering a stale one) and emits the pulse.
func (s *Sampler) Trigger() error {
	s.window.Arm()
	if err := s.pulser.Pulse(); err != nil {
		return fmt.Errorf("trigger pulse: %w", err)
	}
	return nil
}

// Run triggers every period until ctx is done. Pulse errors are returned
// through errs without stopping the loop; errs may be nil.
func (s *Sampler) Run(ctx context.Context, errs chan<- error) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Trigger(); err != nil && errs != nil {
				select {
				case errs <- err:
				default:
				}
			}
		}
	}
}
