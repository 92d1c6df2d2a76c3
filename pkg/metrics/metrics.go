package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_events_processed_total",
			Help: "Total number of events processed by the engine (count)",
		},
		[]string{"kind", "status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_processing_duration_ms",
			Help:    "End-to-end processing duration per event in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"kind", "status"},
	)

	HandlerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_handler_invocations_total",
			Help: "Total number of handler invocations (count)",
		},
		[]string{"handler", "status"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_handler_duration_ms",
			Help:    "Handler invocation duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"handler"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retry_attempts_total",
			Help: "Total number of retry attempts per handler (count)",
		},
		[]string{"handler"},
	)

	FilteredEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_filtered_events_total",
			Help: "Total number of events rejected by the filter chain (count)",
		},
		[]string{"predicate"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"handler"},
	)

	CircuitBreakerFastFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_circuit_breaker_fast_failures_total",
			Help: "Total number of invocations short-circuited by an open breaker (count)",
		},
		[]string{"handler"},
	)

	RegisteredHandlers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_registered_handlers",
			Help: "Number of registered handlers (count)",
		},
	)

	StatsSinkErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_stats_sink_errors_total",
			Help: "Total number of swallowed statistics sink errors (count)",
		},
	)

	IngestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_ingest_messages_total",
			Help: "Total number of messages read from the event source (count)",
		},
		[]string{"topic", "status"},
	)
)

func RegisterProcessorMetrics() {
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(HandlerInvocationsTotal)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(FilteredEventsTotal)
	prometheus.MustRegister(StatsSinkErrorsTotal)
}

func RegisterResilienceMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerFastFailuresTotal)
}

func RegisterRegistryMetrics() {
	prometheus.MustRegister(RegisteredHandlers)
}

func RegisterIngestMetrics() {
	prometheus.MustRegister(IngestMessagesTotal)
}

func ObserveProcessingDuration(kind, status string, duration time.Duration) {
	ProcessingDuration.WithLabelValues(kind, status).Observe(float64(duration.Milliseconds()))
}

func ObserveHandlerDuration(handler string, duration time.Duration) {
	HandlerDuration.WithLabelValues(handler).Observe(float64(duration.Milliseconds()))
}

func IncHandlerInvocation(handler, status string) {
	HandlerInvocationsTotal.WithLabelValues(handler, status).Inc()
}

func IncRetryAttempt(handler string) {
	RetryAttemptsTotal.WithLabelValues(handler).Inc()
}

func IncFilteredEvent(predicate string) {
	FilteredEventsTotal.WithLabelValues(predicate).Inc()
}

func SetRegisteredHandlers(count int) {
	RegisteredHandlers.Set(float64(count))
}
