package status

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vlxbridge"

// Call outcome labels for the loop call histogram.
const (
	callOK    = "ok"
	callError = "error"
)

// Metrics holds the bridge's Prometheus collectors on a private registry.
//
// It implements vlx.Metrics and is safe for concurrent use.
type Metrics struct {
	registry     *prometheus.Registry
	commands     *prometheus.CounterVec
	publishes    prometheus.Counter
	restarts     *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector, plus the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Inbound MQTT commands by entity kind and result.",
			},
			[]string{"kind", "result"},
		),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_publishes_total",
			Help:      "Cover state changes published to MQTT.",
		}),
		restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restart_triggers_total",
				Help:      "Restarts requested by the supervisor, by reason.",
			},
			[]string{"reason"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "loop_call_duration_seconds",
				Help:      "Time from submitting a gateway operation to its completion.",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands,
		m.publishes,
		m.restarts,
		m.callDuration,
	)
	return m
}

// CommandHandled counts one inbound command.
func (m *Metrics) CommandHandled(kind, result string) {
	m.commands.WithLabelValues(kind, result).Inc()
}

// StatePublished counts one published cover state change.
func (m *Metrics) StatePublished() {
	m.publishes.Inc()
}

// RestartTriggered counts a supervisor restart request.
func (m *Metrics) RestartTriggered(reason string) {
	m.restarts.WithLabelValues(reason).Inc()
}

// ObserveCall records the duration of one loop call.
func (m *Metrics) ObserveCall(d time.Duration, err error) {
	result := callOK
	if err != nil {
		result = callError
	}
	m.callDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
