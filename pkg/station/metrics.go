package station

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of counters a Station reports for one location. It
// follows the Prometheus counter-plus-/metrics-handler pattern, applied to
// port transitions, transfers and step failures.
type Metrics struct {
	portsReady     *prometheus.CounterVec
	stepsFailed    *prometheus.CounterVec
	transfersOK    *prometheus.CounterVec
	transfersError *prometheus.CounterVec
}

// NewMetrics registers a fresh set of counters against reg (use
// prometheus.NewRegistry for test isolation, or promauto's default registry
// via NewDefaultMetrics in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		portsReady: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowc_ports_ready_total",
			Help: "Number of ports that transitioned to Ready, by port name.",
		}, []string{"port"}),
		stepsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowc_steps_failed_total",
			Help: "Number of step executions that exited non-zero, by step name.",
		}, []string{"step"}),
		transfersOK: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowc_transfers_total",
			Help: "Number of successful send/recv/broadcast transfers, by kind and port.",
		}, []string{"kind", "port"}),
		transfersError: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowc_transfer_errors_total",
			Help: "Number of failed send/recv/broadcast transfers, by kind and port.",
		}, []string{"kind", "port"}),
	}
}

// NewDefaultMetrics registers against prometheus's default registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// Handler returns the /metrics HTTP handler for prometheus's default
// registry, the one NewDefaultMetrics registers against. Counters built by
// NewMetrics against any other registry are not served by it.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (s *Station) metricPortReady(port string) {
	if s.metrics == nil {
		return
	}
	s.metrics.portsReady.WithLabelValues(port).Inc()
}

func (s *Station) metricStepFailed(step string) {
	if s.metrics == nil {
		return
	}
	s.metrics.stepsFailed.WithLabelValues(step).Inc()
}

func (s *Station) metricTransferOK(kind, port string) {
	if s.metrics == nil {
		return
	}
	s.metrics.transfersOK.WithLabelValues(kind, port).Inc()
}

func (s *Station) metricTransferFailed(kind, port string) {
	if s.metrics == nil {
		return
	}
	s.metrics.transfersError.WithLabelValues(kind, port).Inc()
}
