package mqtt

import (
	"sync"

	"github.com/sweeney/garage-controller/internal/logic"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload string
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	Topics Topics

	// Messages contains every publish in order.
	Messages []Message

	// PublishError, if set, will be returned by every publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for base.
func NewFakePublisher(base string) *FakePublisher {
	return &FakePublisher{Topics: Topics{Base: base}, Connected: true}
}

func (f *FakePublisher) record(topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Topic: topic, Payload: payload})
	return nil
}

// PublishState records the status text and its legacy form.
func (f *FakePublisher) PublishState(status logic.DoorStatus) error {
	state, legacy := StatePayload(status)
	if err := f.record(f.Topics.State(), state); err != nil {
		return err
	}
	if legacy == "" {
		return nil
	}
	return f.record(f.Topics.Base, legacy)
}

// PublishJSON records the controller document.
func (f *FakePublisher) PublishJSON(payload []byte) error {
	return f.record(f.Topics.JSON(), string(payload))
}

// PublishNotify records notification text.
func (f *FakePublisher) PublishNotify(text string) error {
	return f.record(f.Topics.Notify(), text)
}

// On returns the payloads published to topic.
func (f *FakePublisher) On(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
}
