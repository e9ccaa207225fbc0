// Package controller runs the garage evaluation cycle: sample, filter, fuse,
// classify, log, publish and automate. It also applies door commands and
// option changes coming from MQTT and HTTP.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/climate"
	"github.com/sweeney/garage-controller/internal/distance"
	"github.com/sweeney/garage-controller/internal/echo"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/logstore"
	"github.com/sweeney/garage-controller/internal/metrics"
	"github.com/sweeney/garage-controller/internal/mqtt"
	"github.com/sweeney/garage-controller/internal/notify"
	"github.com/sweeney/garage-controller/internal/options"
	"github.com/sweeney/garage-controller/internal/protocol"
	"github.com/sweeney/garage-controller/internal/status"
)

// PublishInterval is the longest gap between MQTT state publications.
const PublishInterval = 15 * time.Second

// NotifyTimeout bounds one round of notification delivery.
const NotifyTimeout = 20 * time.Second

// ErrUnknownCommand is returned for command names HandleCommand does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Deps are the collaborators a Controller drives. Decoder, Publisher,
// Metrics, OptionsFile and Climate may be nil. Climate builds the sensor for
// the configured tsn kind.
type Deps struct {
	Hardware    gpio.Hardware
	Window      *echo.Window
	Decoder     protocol.Decoder
	Cell        *protocol.Cell
	Log         *logstore.Store
	Publisher   mqtt.Publisher
	Tracker     *status.Tracker
	Metrics     *metrics.Metrics
	OptionsFile *options.File
	Climate     func(climate.Kind) climate.Sensor
}

// Controller owns the door state machines. All methods are safe for
// concurrent use; the evaluation cycle, alarm ticks and commands are
// serialized.
type Controller struct {
	mu sync.Mutex

	hw      gpio.Hardware
	window  *echo.Window
	decoder protocol.Decoder
	cell    *protocol.Cell
	store   *logstore.Store
	pub     mqtt.Publisher
	tracker *status.Tracker
	metrics *metrics.Metrics
	optFile *options.File

	newClimate func(climate.Kind) climate.Sensor
	climate    climate.Sensor

	opts     options.Options
	settings Settings

	filter   *distance.Filter
	engine   *logic.Engine
	auto     *automation.Engine
	actuator *automation.Actuator
	notifier *notify.Dispatcher

	lastPublish time.Time
}

// New builds a controller configured from opts.
func New(opts options.Options, d Deps) *Controller {
	if d.Cell == nil {
		d.Cell = &protocol.Cell{}
	}
	s := SettingsFromOptions(&opts)
	c := &Controller{
		hw:         d.Hardware,
		window:     d.Window,
		decoder:    d.Decoder,
		cell:       d.Cell,
		store:      d.Log,
		pub:        d.Publisher,
		tracker:    d.Tracker,
		metrics:    d.Metrics,
		optFile:    d.OptionsFile,
		newClimate: d.Climate,
		filter:     distance.NewFilter(s.Filter, s.MarginCM),
		engine:     logic.NewEngine(s.Sensor),
		auto:       automation.NewEngine(s.Automation),
		actuator:   automation.NewActuator(s.Actuator, nil, d.Hardware),
		settings:   s,
	}
	c.apply(opts)
	c.setClimate(s.Climate)
	return c
}

// apply must be called with mu held (or before the controller is shared).
func (c *Controller) apply(opts options.Options) {
	s := SettingsFromOptions(&opts)
	if s.Decoder != c.settings.Decoder {
		c.restartDecoder(c.settings.Decoder, s.Decoder)
	}
	if s.Climate != c.settings.Climate {
		c.setClimate(s.Climate)
	}
	c.opts = opts
	c.settings = s

	c.engine.SetConfig(s.Sensor)
	c.filter.SetKind(s.Filter)
	c.filter.SetMargin(s.MarginCM)
	c.window.SetPolicy(s.Timeout)
	c.auto.SetConfig(s.Automation)
	c.actuator.SetConfig(s.Actuator)
	c.actuator.SetExecutor(newExecutor(s, c.hw, c.decoder))

	var pub notify.Publisher
	if c.pub != nil {
		pub = c.pub
	}
	c.notifier = notify.NewDispatcher(notify.FromOptions(&opts, pub)...)

	broker := ""
	if mc, ok := mqtt.ConfigFromOptions(&opts); ok {
		broker = mc.Broker()
	}
	c.tracker.SetConfig(s.Name, s.StatusConfig(broker))
}

// restartDecoder drops the state reported under the previous protocol
// version and restarts the decoder session.
func (c *Controller) restartDecoder(from, to protocol.Version) {
	c.cell.Clear()
	if c.decoder != nil {
		if err := c.decoder.Reset(); err != nil {
			log.Warn().Err(err).Msg("decoder reset failed")
		}
	}
	log.Info().Int("from", int(from)).Int("to", int(to)).Msg("decoder version changed, session restarted")
}

func (c *Controller) setClimate(kind climate.Kind) {
	c.climate = nil
	switch {
	case kind == climate.KindNone:
	case !kind.Supported():
		log.Warn().Str("sensor", kind.String()).Msg("climate sensor retired, not read")
	case c.newClimate != nil:
		c.climate = c.newClimate(kind)
	}
}

// readClimate keeps the previous reading when the sensor fails.
func (c *Controller) readClimate() {
	if c.climate == nil {
		return
	}
	r, err := c.climate.Read()
	if err != nil {
		log.Debug().Err(err).Str("sensor", c.settings.Climate.String()).Msg("climate read failed")
		return
	}
	c.tracker.SetClimate(r.TempC, r.Humidity)
	if c.metrics != nil {
		c.metrics.Temperature.Set(r.TempC)
		if r.HasHumidity {
			c.metrics.Humidity.Set(r.Humidity)
		}
	}
}

// Settings returns the active settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Options returns a copy of the active options.
func (c *Controller) Options() options.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Notifiers returns the enabled notification channel names.
func (c *Controller) Notifiers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifier.Names()
}

// CheckStatus runs one evaluation cycle at now.
func (c *Controller) CheckStatus(ctx context.Context, now time.Time) logic.Result {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics != nil {
		defer func() { c.metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()
	}
	c.refreshConnection()
	c.readClimate()

	reading := c.filter.Read(c.window.Snapshot())
	if reading.Stale {
		log.Debug().Uint("distance", reading.CM).Msg("consensus disagreement, keeping previous distance")
		if c.metrics != nil {
			c.metrics.StaleReadings.Inc()
		}
	}
	in := logic.Input{
		Distance:      reading.CM,
		DistanceValid: reading.Valid(logic.MaxDistance),
	}

	cfg := c.settings.Sensor
	switchInstalled := cfg.Switch != logic.SwitchNone
	if switchInstalled {
		level, err := c.hw.ReadSwitch()
		if err != nil {
			log.Warn().Err(err).Msg("switch read failed")
			return c.skip(now, "switch read failed")
		}
		in.Switch = level
	}

	var ext protocol.State
	var extSeen time.Time
	if cfg.External {
		st, ok := c.cell.Latest()
		if !ok {
			return c.skip(now, "no decoder state yet")
		}
		ext = st
		extSeen = c.cell.Updated()
		in.ExternalStatus = st.Door
	}

	res := c.engine.Evaluate(in)
	if res.Skipped {
		return c.skip(now, "invalid distance")
	}

	c.tracker.Update(status.Door{
		Status:        res.Status,
		Event:         res.Event,
		Vehicle:       res.Vehicle,
		Distance:      reading.CM,
		Stale:         reading.Stale,
		LowConfidence: reading.LowConfidence,
		Switch:        in.Switch,
		Light:         ext.Light,
		Lock:          ext.Lock,
		Obstruction:   ext.Obstruction,
		Openings:      ext.Openings,
		DecoderSeen:   extSeen,
	}, c.engine.IsBaselined(), now)
	if c.metrics != nil {
		c.metrics.ObserveDoor(res.Status, res.Event, res.Vehicle, reading.CM)
	}

	if res.Event.IsChange() {
		log.Info().
			Str("event", res.Event.String()).
			Str("door", res.Status.String()).
			Str("vehicle", res.Vehicle.String()).
			Uint("distance", reading.CM).
			Msg("door event")
	}

	if res.Event.IsTransition() {
		c.appendLog(now, res.Status, reading.CM, switchInstalled, in.Switch)
	}

	if res.Event.IsChange() || c.lastPublish.IsZero() || now.Sub(c.lastPublish) >= PublishInterval {
		c.publish(res.Status)
		c.lastPublish = now
	}

	fx := c.auto.Process(res.Event, now)
	for _, msg := range fx.Messages {
		c.notify(ctx, msg)
	}
	if fx.Close {
		if err := c.request(automation.CommandClose, automation.AlarmRequired, "automation"); err != nil {
			log.Warn().Err(err).Msg("auto-close rejected")
		}
	}
	return res
}

func (c *Controller) skip(now time.Time, reason string) logic.Result {
	log.Debug().Str("reason", reason).Msg("cycle skipped")
	c.tracker.Skipped()
	if c.metrics != nil {
		c.metrics.Skipped.Inc()
	}
	return logic.Result{
		Status:  c.engine.Status(),
		Event:   logic.EventNone,
		Vehicle: c.engine.Vehicle(),
		Skipped: true,
	}
}

func (c *Controller) refreshConnection() {
	cs, ok := c.pub.(mqtt.ConnectionStatus)
	if !ok {
		return
	}
	connected := cs.IsConnected()
	c.tracker.SetMQTTConnected(connected)
	if c.metrics != nil {
		if connected {
			c.metrics.MQTTConnected.Set(1)
		} else {
			c.metrics.MQTTConnected.Set(0)
		}
	}
}

func (c *Controller) appendLog(now time.Time, st logic.DoorStatus, cm uint, switchInstalled, level bool) {
	if c.store == nil {
		return
	}
	rec := logstore.Record{
		Timestamp: now.Unix(),
		Status:    uint16(st),
		Distance:  uint16(cm),
		Switch:    logstore.SwitchNotApplicable,
	}
	if switchInstalled {
		rec.Switch = 0
		if level {
			rec.Switch = 1
		}
	}
	if err := c.store.Append(rec); err != nil {
		log.Error().Err(err).Str("path", c.store.Path()).Msg("event log append failed")
	}
}

func (c *Controller) publish(st logic.DoorStatus) {
	if c.pub == nil {
		return
	}
	if err := c.pub.PublishState(st); err != nil {
		log.Warn().Err(err).Msg("mqtt state publish failed")
	}
	if err := c.pub.PublishJSON(status.FormatController(c.tracker.Snapshot())); err != nil {
		log.Warn().Err(err).Msg("mqtt json publish failed")
	}
}

func (c *Controller) notify(ctx context.Context, text string) {
	if c.notifier.Len() == 0 {
		log.Debug().Str("text", text).Msg("no notification channel enabled")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, NotifyTimeout)
	defer cancel()
	result := "ok"
	if err := c.notifier.Send(ctx, text); err != nil {
		result = "error"
	}
	if c.metrics != nil {
		c.metrics.Notifications.WithLabelValues(result).Inc()
	}
}

// request must be called with mu held.
func (c *Controller) request(cmd automation.Command, mode automation.AlarmMode, source string) error {
	out, err := c.actuator.Request(cmd, c.engine.Status(), mode)
	if c.metrics != nil {
		c.metrics.Actuations.WithLabelValues(cmd.String(), out.String()).Inc()
	}
	c.syncAlarm()
	if err != nil {
		return err
	}
	log.Info().
		Str("command", cmd.String()).
		Str("source", source).
		Str("outcome", out.String()).
		Str("door", c.engine.Status().String()).
		Msg("door command")
	return nil
}

func (c *Controller) syncAlarm() {
	ticks := c.actuator.Alarm().Ticks
	c.tracker.SetAlarm(ticks)
	if c.metrics != nil {
		c.metrics.AlarmTicks.Set(float64(ticks))
	}
}

// TickAlarm advances the pre-actuation alarm by one half-second. A command
// that is no longer legal for the door status when the countdown ends is
// dropped.
func (c *Controller) TickAlarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.actuator.Alarm().Counting() {
		return
	}
	pending := c.actuator.Alarm().Command
	fired, err := c.actuator.Tick(c.engine.Status())
	switch {
	case errors.Is(err, automation.ErrIllegalAction):
		log.Warn().
			Str("command", pending.String()).
			Str("door", c.engine.Status().String()).
			Msg("alarm command dropped, no longer legal")
		if c.metrics != nil {
			c.metrics.Actuations.WithLabelValues(pending.String(), automation.OutcomeDropped.String()).Inc()
		}
	case err != nil:
		log.Error().Err(err).Msg("alarm tick")
	}
	if fired {
		log.Info().Str("command", pending.String()).Msg("alarm countdown finished, command issued")
	}
	c.syncAlarm()
}

// HandleCommand applies a named command from MQTT or HTTP: click, open,
// close, togglelight or togglelock. source is only used for logging.
func (c *Controller) HandleCommand(name, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case "click", "toggle":
		return c.request(automation.CommandToggle, automation.AlarmDefault, source)
	case "open":
		return c.request(automation.CommandOpen, automation.AlarmDefault, source)
	case "close":
		return c.request(automation.CommandClose, automation.AlarmDefault, source)
	case "togglelight", "light":
		return c.sendDecoder(protocol.CommandToggleLight, source)
	case "togglelock", "lock":
		return c.sendDecoder(protocol.CommandToggleLock, source)
	}
	return fmt.Errorf("%q: %w", name, ErrUnknownCommand)
}

// HandleButton applies a classified push button press. A short press
// toggles the door immediately, bypassing the alarm.
func (c *Controller) HandleButton(a automation.ButtonAction) error {
	switch a {
	case automation.ButtonToggle:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.request(automation.CommandToggle, automation.AlarmOff, "button")
	case automation.ButtonReport:
		snap := c.tracker.Snapshot()
		log.Info().
			Str("name", snap.Name).
			Str("http", snap.Config.HTTPAddr).
			Str("broker", snap.Config.Broker).
			Bool("mqtt_connected", snap.MQTTConnected).
			Str("door", snap.Door.Status.String()).
			Uint("distance", snap.Door.Distance).
			Msg("button report")
		return nil
	case automation.ButtonReset:
		log.Warn().Msg("button held for factory reset")
		return c.FactoryReset()
	}
	return nil
}

func (c *Controller) sendDecoder(cmd protocol.Command, source string) error {
	if c.decoder == nil || c.settings.Decoder == protocol.VersionNone {
		return fmt.Errorf("%s without decoder: %w", cmd, automation.ErrIllegalAction)
	}
	if err := c.decoder.Send(cmd); err != nil {
		return fmt.Errorf("decoder %s: %w", cmd, err)
	}
	log.Info().Str("command", cmd.String()).Str("source", source).Msg("decoder command")
	return nil
}

// UpdateOptions sets each named option, saves the result and applies it.
// Nothing changes if any value is rejected.
func (c *Controller) UpdateOptions(values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.opts
	for name, v := range values {
		if err := next.Set(name, v); err != nil {
			return fmt.Errorf("option %s: %w", name, err)
		}
	}
	if c.optFile != nil {
		if err := c.optFile.Save(next); err != nil {
			return err
		}
	}
	c.apply(next)
	log.Info().Int("changed", len(values)).Str("settings", c.settings.String()).Msg("options updated")
	return nil
}

// FactoryReset removes the options file and restores defaults.
func (c *Controller) FactoryReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.optFile != nil {
		if err := c.optFile.Reset(); err != nil {
			return err
		}
	}
	c.apply(options.Defaults())
	log.Warn().Msg("options reset to defaults")
	return nil
}

// ReadLog returns the stored transition records in slot order.
func (c *Controller) ReadLog() ([]logstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, nil
	}
	return c.store.ReadAll()
}

// ClearLog removes the event log. The next record recreates it with the
// currently configured capacity.
func (c *Controller) ClearLog() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	if err := c.store.Reset(); err != nil {
		return err
	}
	c.store = logstore.New(c.store.Path(), c.settings.LogCapacity)
	log.Info().Str("path", c.store.Path()).Msg("event log cleared")
	return nil
}

// Shutdown silences a running alarm without issuing its command.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.actuator.Cancel()
	c.syncAlarm()
	return err
}
