// Package metrics exposes Prometheus collectors for the doorbell daemon.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
)

const namespace = "doorbell"

// Metrics holds the collectors fed by controller reports.
type Metrics struct {
	registry *prometheus.Registry

	Reports       *prometheus.CounterVec
	Detections    *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	Gestures      *prometheus.CounterVec
	Armed         prometheus.Gauge
	Sending       prometheus.Gauge
	Internet      prometheus.Gauge
	IdleSeconds   prometheus.Gauge
	MQTTConnected prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Controller reports by activity",
		}, []string{"activity"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Inference outcomes seen while armed",
		}, []string{"outcome"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery results",
		}, []string{"status"}),
		Gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_gestures_total",
			Help:      "Button gestures by kind",
		}, []string{"gesture"}),
		Armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inference_armed",
			Help:      "1 while the inference loop is armed",
		}),
		Sending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "message_sending",
			Help:      "1 while a notification is in flight",
		}),
		Internet: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "internet_connected",
			Help:      "1 while the network link is up",
		}),
		IdleSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_seconds",
			Help:      "Seconds since the last activity",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT broker connection is up",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Reports, m.Detections, m.Deliveries, m.Gestures,
		m.Armed, m.Sending, m.Internet, m.IdleSeconds, m.MQTTConnected,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchQueues exports depth and drop counts for each task queue.
func (m *Metrics) WatchQueues(app *actor.AppContext) error {
	for _, q := range app.Queues() {
		q := q
		labels := prometheus.Labels{"queue": q.Name()}
		depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_depth",
			Help:        "Messages waiting in a task queue",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Len()) })
		dropped := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_dropped_total",
			Help:        "Messages dropped because a task queue was full",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Dropped()) })
		if err := m.registry.Register(depth); err != nil {
			return fmt.Errorf("register queue %s: %w", q.Name(), err)
		}
		if err := m.registry.Register(dropped); err != nil {
			return fmt.Errorf("register queue %s: %w", q.Name(), err)
		}
	}
	return nil
}

// Observe updates the collectors from a controller report.
func (m *Metrics) Observe(r event.Report) {
	m.Reports.WithLabelValues(string(r.Activity)).Inc()
	switch r.Activity {
	case event.ActivityDetection:
		m.Detections.WithLabelValues(r.Outcome.String()).Inc()
	case event.ActivityDelivery:
		m.Deliveries.WithLabelValues(r.Status.String()).Inc()
	case event.ActivityButton:
		m.Gestures.WithLabelValues(r.Gesture.String()).Inc()
	}

	m.Armed.Set(boolToFloat(r.State.InferenceArmed))
	m.Sending.Set(boolToFloat(r.State.MessageSending))
	m.Internet.Set(boolToFloat(r.State.InternetConnected))
	m.IdleSeconds.Set(float64(r.State.IdleSeconds))
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.MQTTConnected.Set(boolToFloat(connected))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
