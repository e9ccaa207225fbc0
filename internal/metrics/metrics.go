// Package metrics exposes controller state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/garage-controller/internal/logic"
)

const metricPrefix = "garage_"

// Metrics bundles controller metrics on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	DoorStatus    prometheus.Gauge
	DistanceCM    prometheus.Gauge
	Vehicle       prometheus.Gauge
	MQTTConnected prometheus.Gauge
	AlarmTicks    prometheus.Gauge
	Temperature   prometheus.Gauge
	Humidity      prometheus.Gauge
	Events        *prometheus.CounterVec
	Skipped       prometheus.Counter
	StaleReadings prometheus.Counter
	Notifications *prometheus.CounterVec
	Actuations    *prometheus.CounterVec
	CycleDuration prometheus.Histogram
}

// New constructs and registers metrics. echoTimeouts, if non-nil, is read on
// every scrape.
func New(echoTimeouts func() uint64) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		DoorStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "door_status",
			Help: "Door status (0 closed, 1 open, 2 stopped, 3 closing, 4 opening, 5 unknown)",
		}),
		DistanceCM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "distance_cm",
			Help: "Last filtered distance in centimetres",
		}),
		Vehicle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "vehicle",
			Help: "Vehicle presence (0 absent, 1 present, 2 unknown, 3 not available)",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mqtt_connected",
			Help: "1 when the MQTT broker connection is up",
		}),
		AlarmTicks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "alarm_ticks_remaining",
			Help: "Half-second ticks left on the pre-actuation alarm",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "temperature_celsius",
			Help: "Last good climate sensor temperature",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "humidity_percent",
			Help: "Last good climate sensor relative humidity",
		}),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "door_events_total",
				Help: "Door status changes by event",
			},
			[]string{"event"},
		),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "cycles_skipped_total",
			Help: "Evaluation cycles skipped for an invalid distance",
		}),
		StaleReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "stale_readings_total",
			Help: "Readings held back by consensus disagreement",
		}),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notifications dispatched by result",
			},
			[]string{"result"},
		),
		Actuations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actuations_total",
				Help: "Door command requests by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "cycle_duration_seconds",
			Help:    "Evaluation cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	m.reg.MustRegister(
		m.DoorStatus,
		m.DistanceCM,
		m.Vehicle,
		m.MQTTConnected,
		m.AlarmTicks,
		m.Temperature,
		m.Humidity,
		m.Events,
		m.Skipped,
		m.StaleReadings,
		m.Notifications,
		m.Actuations,
		m.CycleDuration,
	)
	if echoTimeouts != nil {
		m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: metricPrefix + "echo_timeouts_total",
			Help: "Echo captures that never resolved",
		}, func() float64 { return float64(echoTimeouts()) }))
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveDoor records the outcome of one evaluated cycle.
func (m *Metrics) ObserveDoor(status logic.DoorStatus, ev logic.DoorEvent, vehicle logic.Vehicle, distance uint) {
	m.DoorStatus.Set(float64(status))
	m.Vehicle.Set(float64(vehicle))
	m.DistanceCM.Set(float64(distance))
	if ev.IsChange() {
		m.Events.WithLabelValues(ev.String()).Inc()
	}
}
