package controller

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/climate"
	"github.com/sweeney/garage-controller/internal/distance"
	"github.com/sweeney/garage-controller/internal/echo"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/options"
	"github.com/sweeney/garage-controller/internal/protocol"
	"github.com/sweeney/garage-controller/internal/status"
)

// Settings is the typed view of the device options used by one cycle.
type Settings struct {
	Name         string
	Sensor       logic.SensorConfig
	Filter       distance.Kind
	MarginCM     uint
	Timeout      echo.TimeoutPolicy
	Automation   automation.Config
	Actuator     automation.ActuatorConfig
	Decoder      protocol.Version
	ClickTime    time.Duration
	ReadInterval time.Duration
	SamplePeriod time.Duration
	LogCapacity  int
	HTTPAddr     string
	Climate      climate.Kind
}

// SettingsFromOptions derives Settings from o.
func SettingsFromOptions(o *options.Options) Settings {
	decoder := protocol.Version(o.Int(options.ExternalDecoder))
	name := o.Str(options.Name)

	return Settings{
		Name: name,
		Sensor: logic.SensorConfig{
			Mount:            logic.Mount(o.Int(options.Mount)),
			Switch:           logic.SwitchType(o.Int(options.Switch)),
			Logic:            logic.CombineLogic(o.Int(options.Logic)),
			DoorThreshold:    uint(o.Int(options.DoorThreshold)),
			VehicleThreshold: uint(o.Int(options.VehicleThreshold)),
			External:         decoder != protocol.VersionNone,
		},
		Filter:   distance.Kind(o.Int(options.Filter)),
		MarginCM: uint(o.Int(options.ConsensusMargin)),
		Timeout:  echo.TimeoutPolicy(o.Int(options.TimeoutCap)),
		Automation: automation.Config{
			Name:            name,
			IntervalMinutes: o.Int(options.AutoInterval),
			IntervalRule:    automation.Rule(o.Int(options.AutoIntervalRule)),
			Hour:            o.Int(options.AutoHour),
			HourRule:        automation.Rule(o.Int(options.AutoHourRule)),
			Notify:          automation.NotifyMask(o.Int(options.Notify)),
		},
		Actuator: automation.ActuatorConfig{
			AlarmSeconds:    automation.AlarmSeconds(o.Int(options.Alarm)),
			NoAlarmOnOpen:   o.Bool(options.NoAlarmOnOpen),
			DirectOpenClose: decoder.DirectOpenClose(),
		},
		Decoder:      decoder,
		ClickTime:    time.Duration(o.Int(options.ClickTime)) * time.Millisecond,
		ReadInterval: time.Duration(o.Int(options.ReadInterval)) * time.Second,
		SamplePeriod: time.Duration(o.Int(options.DistanceInterval)) * time.Millisecond,
		LogCapacity:  o.Int(options.LogSize),
		HTTPAddr:     ":" + strconv.Itoa(o.Int(options.HTTPPort)),
		Climate:      climate.Kind(o.Int(options.ClimateSensor)),
	}
}

// StatusConfig is the display configuration for the status tracker.
func (s Settings) StatusConfig(broker string) status.Config {
	return status.Config{
		Firmware:        options.Version,
		ReadIntervalS:   int(s.ReadInterval / time.Second),
		Broker:          broker,
		HTTPAddr:        s.HTTPAddr,
		SwitchInstalled: s.Sensor.Switch != logic.SwitchNone,
		Decoder:         int(s.Decoder),
		Climate:         int(s.Climate),
	}
}

func (s Settings) String() string {
	return fmt.Sprintf("mount=%d switch=%d logic=%d dth=%d vth=%d filter=%s decoder=%d riv=%v",
		s.Sensor.Mount, s.Sensor.Switch, s.Sensor.Logic, s.Sensor.DoorThreshold,
		s.Sensor.VehicleThreshold, s.Filter, s.Decoder, s.ReadInterval)
}
