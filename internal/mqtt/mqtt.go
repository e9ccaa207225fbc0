// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"strconv"
	"strings"

	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/options"
)

// Status payloads on the retained <base>/OUT/STATUS topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// LegacyButton on any subscribed topic toggles the door.
const LegacyButton = "Button"

// Topics derives every topic from the base topic.
type Topics struct {
	Base string
}

// State is where the door status text is published.
func (t Topics) State() string { return t.Base + "/OUT/STATE" }

// JSON is where the controller document is published.
func (t Topics) JSON() string { return t.Base + "/OUT/JSON" }

// Notify is where notification text is published.
func (t Topics) Notify() string { return t.Base + "/OUT/NOTIFY" }

// Status is the retained online/offline topic (also the LWT).
func (t Topics) Status() string { return t.Base + "/OUT/STATUS" }

// Command is the topic carrying door commands.
func (t Topics) Command() string { return t.Base + "/IN/STATE" }

// Subscriptions returns the topic filters the controller listens on.
func (t Topics) Subscriptions() []string {
	return []string{t.Base, t.Base + "/IN/#"}
}

// Publisher publishes controller state to MQTT.
type Publisher interface {
	// PublishState sends the door status text.
	PublishState(status logic.DoorStatus) error

	// PublishJSON sends the controller document.
	PublishJSON(payload []byte) error

	// PublishNotify sends notification text.
	PublishNotify(text string) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StatePayload returns the /OUT/STATE text and the legacy base-topic text
// for status. Legacy text is empty for statuses older clients never saw.
func StatePayload(status logic.DoorStatus) (state, legacy string) {
	switch status {
	case logic.StatusOpen:
		return "OPEN", "Open"
	case logic.StatusClosed:
		return "CLOSED", "Closed"
	case logic.StatusStopped:
		return "STOPPED", "Stopped"
	}
	return status.String(), ""
}

// Command payloads accepted on the command topic.
var commands = map[string]bool{
	"click":       true,
	"open":        true,
	"close":       true,
	"togglelight": true,
	"togglelock":  true,
}

// ParseCommand maps an inbound message to a command name. The legacy Button
// payload on any topic maps to "click".
func ParseCommand(t Topics, topic string, payload []byte) (string, bool) {
	p := strings.TrimSpace(string(payload))
	if p == LegacyButton {
		return "click", true
	}
	if topic != t.Command() {
		return "", false
	}
	if commands[p] {
		return p, true
	}
	return "", false
}

// Config is the broker connection.
type Config struct {
	Server   string
	Port     int
	User     string
	Password string
	Topic    string
}

// Broker returns the broker URL.
func (c Config) Broker() string {
	if strings.Contains(c.Server, "://") {
		return c.Server
	}
	return "tcp://" + c.Server + ":" + strconv.Itoa(c.Port)
}

// ConfigFromOptions reads the broker settings. It reports false when MQTT
// is disabled or no server is set. The base topic falls back to the device
// name.
func ConfigFromOptions(o *options.Options) (Config, bool) {
	if !o.Bool(options.MQTTEnable) || o.Str(options.MQTTServer) == "" {
		return Config{}, false
	}
	topic := o.Str(options.MQTTTopic)
	if topic == "" {
		topic = o.Str(options.Name)
	}
	return Config{
		Server:   o.Str(options.MQTTServer),
		Port:     o.Int(options.MQTTPort),
		User:     o.Str(options.MQTTUser),
		Password: o.Str(options.MQTTPassword),
		Topic:    topic,
	}, true
}
