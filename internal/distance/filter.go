// Package distance turns a window of echo round-trip times into one distance.
package distance

import "github.com/sweeney/garage-controller/internal/echo"

// Scale converts microseconds of round trip to centimeters (34320 cm/s / 2 / 1e6).
const Scale = 0.01716

// MinMarginMicros is the smallest spread the consensus filter will accept.
const MinMarginMicros = 60

// Kind selects the noise-rejection algorithm.
type Kind int

const (
	Median Kind = iota
	Consensus
)

func (k Kind) String() string {
	if k == Median {
		return "median"
	}
	return "consensus"
}

// Reading is one filtered distance in whole centimeters.
type Reading struct {
	CM uint
	// LowConfidence is set when the window was not yet full and the value
	// came from the newest sample alone.
	LowConfidence bool
	// Stale is set when the consensus filter rejected the window and the
	// previous value was returned.
	Stale bool
}

// Valid reports whether the reading can be used for a status decision.
func (r Reading) Valid(max uint) bool {
	return r.CM != 0 && r.CM <= max && !r.LowConfidence
}

// Filter keeps the last returned value between calls. Not safe for
// concurrent use; it runs on the main loop only.
type Filter struct {
	kind   Kind
	margin uint32
	last   uint
}

// NewFilter creates a filter. marginCM is the consensus margin in centimeters.
func NewFilter(kind Kind, marginCM uint) *Filter {
	f := &Filter{kind: kind}
	f.SetMargin(marginCM)
	return f
}

// SetMargin converts a centimeter margin to microseconds, floored at MinMarginMicros.
func (f *Filter) SetMargin(cm uint) {
	m := uint32(float64(cm) / Scale)
	if m < MinMarginMicros {
		m = MinMarginMicros
	}
	f.margin = m
}

// SetKind switches the algorithm.
func (f *Filter) SetKind(k Kind) {
	f.kind = k
}

// Margin returns the consensus margin in microseconds.
func (f *Filter) Margin() uint32 {
	return f.margin
}

func toCM(us uint32) uint {
	return uint(float64(us) * Scale)
}

// Read produces a reading from a window snapshot.
func (f *Filter) Read(s echo.Snapshot) Reading {
	if !s.Full {
		v, ok := s.Newest()
		if !ok {
			f.last = 0
			return Reading{LowConfidence: true}
		}
		f.last = toCM(v)
		return Reading{CM: f.last, LowConfidence: true}
	}

	buf := s.Samples
	if f.kind == Median {
		f.last = toCM(median(buf[:]))
		return Reading{CM: f.last}
	}

	vmin, vmax, sum := buf[0], buf[0], uint64(buf[0])
	for _, v := range buf[1:] {
		if v < vmin {
			vmin = v
		}
		if v > vmax {
			vmax = v
		}
		sum += uint64(v)
	}
	if vmax-vmin > f.margin {
		return Reading{CM: f.last, Stale: true}
	}
	f.last = toCM(uint32(sum / uint64(len(buf))))
	return Reading{CM: f.last}
}

// median insertion-sorts buf in place and returns the middle element.
func median(buf []uint32) uint32 {
	for out := 1; out < len(buf); out++ {
		temp := buf[out]
		in := out
		for in > 0 && buf[in-1] > temp {
			buf[in] = buf[in-1]
			in--
		}
		buf[in] = temp
	}
	return buf[len(buf)/2]
}
