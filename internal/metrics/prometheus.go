package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusSink implements Sink using Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	callbacksTotal   *prometheus.CounterVec
	callbackDuration prometheus.Histogram

	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec

	logger zerolog.Logger
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer, logger zerolog.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger.With().Str("component", "metrics").Logger()}

	s.callbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billcron_callback_requests_total",
		Help: "Total number of callback invocations by response status class.",
	}, []string{"status_class"})
	s.callbackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billcron_callback_duration_seconds",
		Help:    "Callback request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	s.mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billcron_mutations_total",
		Help: "Total number of billing mutations by action and outcome (completed or failure category).",
	}, []string{"action", "outcome"})
	s.mutationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billcron_mutation_duration_seconds",
		Help:    "Billing service round-trip latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"action"})

	s.register(reg, s.callbacksTotal, "billcron_callback_requests_total")
	s.register(reg, s.callbackDuration, "billcron_callback_duration_seconds")
	s.register(reg, s.mutationsTotal, "billcron_mutations_total")
	s.register(reg, s.mutationDuration, "billcron_mutation_duration_seconds")
	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn().Err(err).Str("metric", name).Msg("failed to register")
	}
}

func (s *PrometheusSink) CallbackCompleted(statusClass string, duration time.Duration) {
	s.callbacksTotal.WithLabelValues(statusClass).Inc()
	s.callbackDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) MutationOutcome(action, outcome string, duration time.Duration) {
	s.mutationsTotal.WithLabelValues(action, outcome).Inc()
	s.mutationDuration.WithLabelValues(action).Observe(duration.Seconds())
}
