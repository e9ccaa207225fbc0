// Package echo acquires ultrasonic round-trip times into a fixed-size window.
// The window is written from edge-event context and read from the main loop;
// every multi-field update happens inside the window's critical section.
package echo

import (
	"sync"
	"time"
)

// WindowSize is the number of round-trip samples kept.
const WindowSize = 7

// TimeoutMicros is the round-trip ceiling (~4.5 m).
const TimeoutMicros uint32 = 26000

// TimeoutPolicy decides what happens to a capture that never resolved.
type TimeoutPolicy int

const (
	// TimeoutDiscard drops the stale capture.
	TimeoutDiscard TimeoutPolicy = iota
	// TimeoutCap records TimeoutMicros in place of the stale capture.
	TimeoutCap
)

// Snapshot is a copy of the window taken under the lock.
type Snapshot struct {
	Samples [WindowSize]uint32
	Index   int  // next write position
	Full    bool // index has wrapped at least once
}

// Count returns how many slots hold real samples.
func (s Snapshot) Count() int {
	if s.Full {
		return WindowSize
	}
	return s.Index
}

// Newest returns the most recently pushed sample, or false if none.
func (s Snapshot) Newest() (uint32, bool) {
	if s.Index > 0 {
		return s.Samples[s.Index-1], true
	}
	if s.Full {
		return s.Samples[WindowSize-1], true
	}
	return 0, false
}

// Window is the ring buffer of round-trip times plus the capture flags.
type Window struct {
	mu       sync.Mutex
	buf      [WindowSize]uint32
	idx      int
	full     bool
	armed    bool
	rising   bool
	start    int64 // µs timestamp of the rising edge
	policy   TimeoutPolicy
	timeouts uint64
}

// NewWindow returns an empty window using the given timeout policy.
func NewWindow(policy TimeoutPolicy) *Window {
	return &Window{policy: policy}
}

// SetPolicy changes the timeout policy.
func (w *Window) SetPolicy(p TimeoutPolicy) {
	w.mu.Lock()
	w.policy = p
	w.mu.Unlock()
}

// push must be called with mu held.
func (w *Window) push(us uint32) {
	w.buf[w.idx] = us
	w.idx = (w.idx + 1) % WindowSize
	if w.idx == 0 {
		w.full = true
	}
}

// PushSample appends one round-trip time, capping it when the policy says so.
// It is safe to call from edge-event context.
func (w *Window) PushSample(us uint32) {
	w.mu.Lock()
	w.pushLocked(us)
	w.mu.Unlock()
}

func (w *Window) pushLocked(us uint32) {
	if us > TimeoutMicros {
		w.timeouts++
		if w.policy == TimeoutDiscard {
			return
		}
		us = TimeoutMicros
	}
	w.push(us)
}

// Arm prepares a new capture. If the previous capture never saw its falling
// edge it is recovered per policy before re-arming. Reports whether a stale
// capture was found.
func (w *Window) Arm() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	stale := w.armed
	if stale {
		w.timeouts++
		if w.policy == TimeoutCap {
			w.push(TimeoutMicros)
		}
	}
	w.armed = true
	w.rising = false
	return stale
}

// HandleEdge is the echo line callback: it records an edge stamped on the
// line's event clock. It does not block beyond the window's critical section.
func (w *Window) HandleEdge(rising bool, ts time.Duration) {
	w.Edge(rising, ts.Microseconds())
}

// Edge records one echo edge. Timestamps are in microseconds on any
// monotonic base. Edges outside an armed capture are ignored.
func (w *Window) Edge(rising bool, tsMicros int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	if rising {
		w.start = tsMicros
		w.rising = true
		return
	}
	if !w.rising {
		return
	}
	w.armed = false
	w.rising = false
	elapsed := tsMicros - w.start
	if elapsed < 0 {
		return
	}
	if elapsed > int64(TimeoutMicros) {
		elapsed = int64(TimeoutMicros) + 1
	}
	w.pushLocked(uint32(elapsed))
}

// Snapshot copies the buffer, index and full flag in one critical section.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{Samples: w.buf, Index: w.idx, Full: w.full}
}

// Timeouts returns the number of captures that exceeded the ceiling or never resolved.
func (w *Window) Timeouts() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeouts
}
