package mqtt

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/options"
)

func TestTopics(t *testing.T) {
	tp := Topics{Base: "garage"}
	tests := []struct {
		got, want string
	}{
		{tp.State(), "garage/OUT/STATE"},
		{tp.JSON(), "garage/OUT/JSON"},
		{tp.Notify(), "garage/OUT/NOTIFY"},
		{tp.Status(), "garage/OUT/STATUS"},
		{tp.Command(), "garage/IN/STATE"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
	if diff := cmp.Diff([]string{"garage", "garage/IN/#"}, tp.Subscriptions()); diff != "" {
		t.Errorf("subscriptions (-want +got):\n%s", diff)
	}
}

func TestStatePayload(t *testing.T) {
	tests := []struct {
		status     logic.DoorStatus
		wantState  string
		wantLegacy string
	}{
		{logic.StatusOpen, "OPEN", "Open"},
		{logic.StatusClosed, "CLOSED", "Closed"},
		{logic.StatusStopped, "STOPPED", "Stopped"},
		{logic.StatusOpening, "OPENING", ""},
		{logic.StatusUnknown, "UNKNOWN", ""},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			state, legacy := StatePayload(tt.status)
			if state != tt.wantState || legacy != tt.wantLegacy {
				t.Errorf("got (%s, %s), want (%s, %s)", state, legacy, tt.wantState, tt.wantLegacy)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tp := Topics{Base: "garage"}
	tests := []struct {
		name    string
		topic   string
		payload string
		want    string
		wantOK  bool
	}{
		{"click", "garage/IN/STATE", "click", "click", true},
		{"open", "garage/IN/STATE", "open", "open", true},
		{"close with newline", "garage/IN/STATE", "close\n", "close", true},
		{"light", "garage/IN/STATE", "togglelight", "togglelight", true},
		{"lock", "garage/IN/STATE", "togglelock", "togglelock", true},
		{"unknown payload", "garage/IN/STATE", "explode", "", false},
		{"wrong topic", "garage/IN/OTHER", "open", "", false},
		{"legacy button on base", "garage", "Button", "click", true},
		{"legacy button on in topic", "garage/IN/X", "Button", "click", true},
		{"state echo on base", "garage", "Open", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tp, tt.topic, []byte(tt.payload))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestConfigFromOptions(t *testing.T) {
	o := options.Defaults()
	if _, ok := ConfigFromOptions(&o); ok {
		t.Error("MQTT disabled by default")
	}

	o.Set("mqen", "1")
	if _, ok := ConfigFromOptions(&o); ok {
		t.Error("MQTT without server should stay disabled")
	}

	o.Set("mqtt", "broker.local")
	o.Set("name", "Shed")
	cfg, ok := ConfigFromOptions(&o)
	if !ok {
		t.Fatal("expected MQTT enabled")
	}
	if cfg.Topic != "Shed" {
		t.Errorf("topic should fall back to name, got %q", cfg.Topic)
	}
	if cfg.Broker() != "tcp://broker.local:1883" {
		t.Errorf("broker: %s", cfg.Broker())
	}

	o.Set("mqtp", "home/garage")
	cfg, _ = ConfigFromOptions(&o)
	if cfg.Topic != "home/garage" {
		t.Errorf("topic: %q", cfg.Topic)
	}
}

func TestBrokerWithScheme(t *testing.T) {
	cfg := Config{Server: "ssl://broker:8883", Port: 1883}
	if cfg.Broker() != "ssl://broker:8883" {
		t.Errorf("got %s", cfg.Broker())
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher("garage")

	if err := f.PublishState(logic.StatusOpen); err != nil {
		t.Fatal(err)
	}
	f.PublishState(logic.StatusClosing)
	f.PublishJSON([]byte(`{"door":1}`))
	f.PublishNotify("garage just OPENED!")

	if diff := cmp.Diff([]string{"OPEN", "CLOSING"}, f.On("garage/OUT/STATE")); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Open"}, f.On("garage")); diff != "" {
		t.Errorf("legacy (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`{"door":1}`}, f.On("garage/OUT/JSON")); diff != "" {
		t.Errorf("json (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"garage just OPENED!"}, f.On("garage/OUT/NOTIFY")); diff != "" {
		t.Errorf("notify (-want +got):\n%s", diff)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher("garage")
	f.PublishError = errors.New("broker down")

	if err := f.PublishNotify("x"); err == nil {
		t.Error("expected error")
	}
	if len(f.Messages) != 0 {
		t.Error("failed publish should not be recorded")
	}

	f.Reset()
	if err := f.PublishNotify("x"); err != nil {
		t.Errorf("after reset: %v", err)
	}
	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}
}
