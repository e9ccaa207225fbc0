package status

import (
	"encoding/json"
	"time"
)

// ControllerJSON is the compact controller document served at /jc and
// published on <topic>/OUT/JSON.
type ControllerJSON struct {
	Dist        uint   `json:"dist"`
	Stale       bool   `json:"stale,omitempty"`
	Switch      *int   `json:"sn2,omitempty"`
	SecV        int    `json:"secv"`
	Door        int    `json:"door"`
	Vehicle     int    `json:"vehicle"`
	ReadCount   int    `json:"rcnt"`
	Firmware    int    `json:"fwv"`
	Name        string `json:"name"`
	Light       int    `json:"light"`
	Lock        int    `json:"lock"`
	Obstruction int    `json:"obstruct"`
	Openings    uint32 `json:"nopenings"`

	// Present only when a climate sensor is configured.
	Temp  *float64 `json:"temp,omitempty"`
	Humid *float64 `json:"humid,omitempty"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Controller builds the controller document from a snapshot.
func Controller(snap Snapshot) ControllerJSON {
	c := ControllerJSON{
		Dist:        snap.Door.Distance,
		Stale:       snap.Door.Stale,
		SecV:        snap.Config.Decoder,
		Door:        int(snap.Door.Status),
		Vehicle:     int(snap.Door.Vehicle),
		ReadCount:   snap.ReadCount,
		Firmware:    snap.Config.Firmware,
		Name:        snap.Name,
		Light:       boolInt(snap.Door.Light),
		Lock:        boolInt(snap.Door.Lock),
		Obstruction: boolInt(snap.Door.Obstruction),
		Openings:    snap.Door.Openings,
	}
	if snap.Config.SwitchInstalled {
		v := boolInt(snap.Door.Switch)
		c.Switch = &v
	}
	if snap.Config.Climate != 0 {
		temp, humid := snap.TempC, snap.Humidity
		c.Temp = &temp
		c.Humid = &humid
	}
	return c
}

// FormatController returns the controller document as JSON.
func FormatController(snap Snapshot) []byte {
	data, _ := json.Marshal(Controller(snap))
	return data
}

// StatusJSON is the top-level JSON envelope for the verbose status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Name           string     `json:"name"`
	Door           string     `json:"door"`
	Event          string     `json:"event"`
	Vehicle        string     `json:"vehicle"`
	DistanceCM     uint       `json:"distance_cm"`
	Stale          bool       `json:"stale"`
	LowConfidence  bool       `json:"low_confidence"`
	Ready          bool       `json:"ready"`
	AlarmTicks     int        `json:"alarm_ticks"`
	LastTransition string     `json:"last_transition,omitempty"`
	DecoderSeen    string     `json:"decoder_updated,omitempty"`
	DecoderAgeS    *int64     `json:"decoder_age_s,omitempty"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	StartTime      string     `json:"start_time"`
	Timestamp      string     `json:"timestamp"`
	MQTT           MQTTStatus `json:"mqtt"`
	Counts         CountsJSON `json:"event_counts"`
	Config         ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened  int `json:"opened"`
	Closed  int `json:"closed"`
	Stopped int `json:"stopped"`
	Skipped int `json:"skipped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Firmware      int    `json:"firmware"`
	ReadIntervalS int    `json:"read_interval_s"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	Decoder       int    `json:"decoder"`
}

// FormatJSON returns the verbose JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		Name:          snap.Name,
		Door:          snap.Door.Status.String(),
		Event:         snap.Door.Event.String(),
		Vehicle:       snap.Door.Vehicle.String(),
		DistanceCM:    snap.Door.Distance,
		Stale:         snap.Door.Stale,
		LowConfidence: snap.Door.LowConfidence,
		Ready:         snap.Baselined,
		AlarmTicks:    snap.AlarmTicks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opened:  snap.Counts.Opened,
			Closed:  snap.Counts.Closed,
			Stopped: snap.Counts.Stopped,
			Skipped: snap.Counts.Skipped,
		},
		Config: ConfigJSON{
			Firmware:      snap.Config.Firmware,
			ReadIntervalS: snap.Config.ReadIntervalS,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Decoder:       snap.Config.Decoder,
		},
	}
	if !snap.LastTransition.IsZero() {
		inner.LastTransition = snap.LastTransition.UTC().Format(time.RFC3339)
	}
	if seen := snap.Door.DecoderSeen; !seen.IsZero() {
		inner.DecoderSeen = seen.UTC().Format(time.RFC3339)
		age := int64(snap.Now.Sub(seen).Truncate(time.Second).Seconds())
		if age < 0 {
			age = 0
		}
		inner.DecoderAgeS = &age
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
