// Command garage-controller measures the garage door with an ultrasonic
// sensor, publishes door and vehicle state to MQTT and serves a status page
// with device-key protected commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/climate"
	"github.com/sweeney/garage-controller/internal/controller"
	"github.com/sweeney/garage-controller/internal/distance"
	"github.com/sweeney/garage-controller/internal/echo"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/logstore"
	"github.com/sweeney/garage-controller/internal/metrics"
	"github.com/sweeney/garage-controller/internal/mqtt"
	"github.com/sweeney/garage-controller/internal/options"
	"github.com/sweeney/garage-controller/internal/protocol"
	"github.com/sweeney/garage-controller/internal/status"
	"github.com/sweeney/garage-controller/internal/web"
)

// commandBuffer holds MQTT commands until the loop picks them up.
const commandBuffer = 8

// buttonBuffer holds push button edges until the loop picks them up.
const buttonBuffer = 4

// buttonEdge is one push button transition on the line's event clock.
type buttonEdge struct {
	pressed bool
	at      time.Duration
}

type flags struct {
	optionsPath string
	logPath     string
	pinsPath    string
	bridgePath  string
	baud        int
	httpAddr    string
	printState  bool
}

func main() {
	var f flags
	flag.StringVar(&f.optionsPath, "options", "/var/lib/garage-controller/options.dat", "Options file")
	flag.StringVar(&f.logPath, "log", "/var/lib/garage-controller/events.dat", "Event log file")
	flag.StringVar(&f.pinsPath, "hardware", "", "YAML pin map (empty for default wiring)")
	flag.StringVar(&f.bridgePath, "bridge", "", "Serial port of the external door decoder (empty to disable)")
	flag.IntVar(&f.baud, "baud", 115200, "Decoder serial baud rate")
	flag.StringVar(&f.httpAddr, "http", "", `HTTP listen address (empty uses the "htp" option, "off" disables)`)
	flag.BoolVar(&f.printState, "print-state", false, "Print one distance and switch reading and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(f); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(f flags) error {
	optFile := options.NewFile(f.optionsPath)
	opts, err := optFile.Setup()
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	settings := controller.SettingsFromOptions(&opts)

	pins, err := gpio.LoadPins(f.pinsPath)
	if err != nil {
		return err
	}

	win := echo.NewWindow(settings.Timeout)
	buttons := make(chan buttonEdge, buttonBuffer)
	hw, err := gpio.NewRealHardware(pins, win.HandleEdge, func(pressed bool, ts time.Duration) {
		select {
		case buttons <- buttonEdge{pressed: pressed, at: ts}:
		default:
			log.Warn().Bool("pressed", pressed).Msg("button queue full, edge dropped")
		}
	})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer hw.Close()
	sampler := echo.NewSampler(win, hw, settings.SamplePeriod)

	if f.printState {
		return printState(sampler, hw, settings)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cell := &protocol.Cell{}
	var decoder protocol.Decoder
	if f.bridgePath != "" {
		bridge, err := startBridge(ctx, f.bridgePath, f.baud, cell, settings.Decoder)
		if err != nil {
			log.Error().Err(err).Str("port", f.bridgePath).Msg("decoder bridge unavailable")
		} else {
			defer bridge.Close()
			decoder = bridge
		}
	} else if settings.Decoder != protocol.VersionNone {
		log.Warn().Int("secv", int(settings.Decoder)).Msg("decoder configured but no -bridge given, cycles will be skipped")
	}

	cmds := make(chan string, commandBuffer)
	var publisher mqtt.Publisher
	if mc, ok := mqtt.ConfigFromOptions(&opts); ok {
		p, err := mqtt.NewRealPublisher(mc, func(cmd string) {
			select {
			case cmds <- cmd:
			default:
				log.Warn().Str("command", cmd).Msg("command queue full, dropped")
			}
		})
		if err != nil {
			log.Error().Err(err).Str("broker", mc.Broker()).Msg("mqtt disabled")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	tracker := status.NewTracker(time.Now(), settings.Name, status.Config{})
	m := metrics.New(win.Timeouts)
	store := logstore.New(f.logPath, settings.LogCapacity)

	deps := controller.Deps{
		Hardware:    hw,
		Window:      win,
		Decoder:     decoder,
		Cell:        cell,
		Log:         store,
		Publisher:   publisher,
		Tracker:     tracker,
		Metrics:     m,
		OptionsFile: optFile,
		Climate: func(k climate.Kind) climate.Sensor {
			return climate.NewSysfs(k)
		},
	}
	ctrl := controller.New(opts, deps)

	addr := settings.HTTPAddr
	if f.httpAddr != "" {
		addr = f.httpAddr
	}
	if addr != "off" {
		srv := web.New(addr, tracker, ctrl, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", addr).Msg("http server listening")
	}

	pulseErrs := make(chan error, 1)
	go sampler.Run(ctx, pulseErrs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-pulseErrs:
				log.Warn().Err(err).Msg("echo trigger")
			}
		}
	}()

	log.Info().
		Str("name", settings.Name).
		Str("settings", settings.String()).
		Strs("notify", ctrl.Notifiers()).
		Msg("started")

	statusTicker := time.NewTicker(settings.ReadInterval)
	defer statusTicker.Stop()
	alarmTicker := time.NewTicker(automation.TickInterval)
	defer alarmTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, ctrl, time.Now, statusTicker.C, alarmTicker.C, cmds, buttons, sigCh, statusTicker.Reset)
}

func startBridge(ctx context.Context, path string, baud int, cell *protocol.Cell, want protocol.Version) (*protocol.Bridge, error) {
	bridge, err := protocol.OpenSerialBridge(path, baud)
	if err != nil {
		return nil, err
	}
	if err := bridge.Start(ctx, cell.Set); err != nil {
		bridge.Close()
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	got, err := bridge.Detect(ctx)
	if err != nil {
		log.Warn().Err(err).Str("port", path).Msg("decoder did not answer")
		return bridge, nil
	}
	if got != want {
		log.Warn().Int("detected", int(got)).Int("secv", int(want)).Msg("decoder version differs from option")
	} else {
		log.Info().Int("version", int(got)).Msg("decoder detected")
	}
	return bridge, nil
}

// runLoop drives the controller until a signal arrives. Push button edges
// are classified here and applied on release. retick, if non-nil, is called
// when the read interval option changes.
func runLoop(ctx context.Context, ctrl *controller.Controller, now func() time.Time, statusTick, alarmTick <-chan time.Time, cmds <-chan string, buttons <-chan buttonEdge, sig <-chan os.Signal, retick func(time.Duration)) error {
	interval := ctrl.Settings().ReadInterval
	var button automation.Button

	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			if err := ctrl.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("silence alarm")
			}
			return nil

		case <-statusTick:
			ctrl.CheckStatus(ctx, now())
			if d := ctrl.Settings().ReadInterval; d != interval {
				log.Info().Dur("from", interval).Dur("to", d).Msg("read interval changed")
				interval = d
				if retick != nil {
					retick(d)
				}
			}

		case <-alarmTick:
			ctrl.TickAlarm()

		case cmd := <-cmds:
			if err := ctrl.HandleCommand(cmd, "mqtt"); err != nil {
				log.Warn().Err(err).Str("command", cmd).Msg("mqtt command rejected")
			}

		case e := <-buttons:
			var act automation.ButtonAction
			button, act = automation.StepButton(button, e.pressed, e.at)
			if act == automation.ButtonNone {
				continue
			}
			log.Info().Str("action", act.String()).Msg("button pressed")
			if err := ctrl.HandleButton(act); err != nil {
				log.Warn().Err(err).Str("action", act.String()).Msg("button action failed")
			}
		}
	}
}

// printState takes one full window of echoes and prints the filtered
// distance and the switch level.
func printState(s *echo.Sampler, hw gpio.Hardware, settings controller.Settings) error {
	for i := 0; i < echo.WindowSize; i++ {
		if err := s.Trigger(); err != nil {
			return err
		}
		time.Sleep(60 * time.Millisecond)
	}
	reading := distance.NewFilter(settings.Filter, settings.MarginCM).Read(s.Window().Snapshot())
	if !reading.Valid(logic.MaxDistance) {
		fmt.Printf("distance: invalid (%d cm)\n", reading.CM)
	} else {
		fmt.Printf("distance: %d cm\n", reading.CM)
	}

	level, err := hw.ReadSwitch()
	if err != nil {
		return fmt.Errorf("read switch: %w", err)
	}
	fmt.Printf("switch: %s\n", levelString(level))
	return nil
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
