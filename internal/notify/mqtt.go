package notify

import "context"

// Publisher publishes notification text on the broker.
type Publisher interface {
	PublishNotify(text string) error
}

// MQTT sends notifications to the <topic>/OUT/NOTIFY topic.
type MQTT struct {
	pub Publisher
}

// NewMQTT constructs an MQTT channel.
func NewMQTT(pub Publisher) *MQTT {
	return &MQTT{pub: pub}
}

// Name implements Sink.
func (m *MQTT) Name() string {
	return "mqtt"
}

// Send implements Sink.
func (m *MQTT) Send(_ context.Context, text string) error {
	return m.pub.PublishNotify(text)
}
