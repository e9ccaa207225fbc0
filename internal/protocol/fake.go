package protocol

import (
	"context"
	"sync"
)

// FakeDecoder is a test double that records commands and emits states on
// demand.
type FakeDecoder struct {
	mu sync.Mutex

	Version   Version
	DetectErr error
	SendErr   error
	Commands  []Command
	Resets    int
	Closed    bool

	onState func(State)
}

// Start stores the state callback.
func (f *FakeDecoder) Start(ctx context.Context, onState func(State)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = onState
	return nil
}

// Detect returns the scripted version or error.
func (f *FakeDecoder) Detect(ctx context.Context) (Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DetectErr != nil {
		return VersionNone, f.DetectErr
	}
	return f.Version, nil
}

// Reset counts resets.
func (f *FakeDecoder) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets++
	return nil
}

// Send records cmd.
func (f *FakeDecoder) Send(cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// Sent returns a copy of the recorded commands.
func (f *FakeDecoder) Sent() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.Commands...)
}

// Emit delivers s as if the decoder had reported it.
func (f *FakeDecoder) Emit(s State) {
	f.mu.Lock()
	fn := f.onState
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Close marks the decoder closed.
func (f *FakeDecoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
