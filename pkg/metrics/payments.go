package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SwitchMetrics records confirmation and connector-level outcomes.
type SwitchMetrics struct {
	confirmations     *prometheus.CounterVec
	authentications   *prometheus.CounterVec
	connectorDuration *prometheus.HistogramVec
	connectorErrors   *prometheus.CounterVec
}

// NewSwitchMetrics registers the payment-switch metrics on the provided registerer.
func NewSwitchMetrics(reg prometheus.Registerer) *SwitchMetrics {
	if reg == nil {
		return &SwitchMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment confirmations by terminal status.",
	}, []string{"status"})
	authentications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authentication_results_total",
		Help: "3DS authentication attempts by outcome.",
	}, []string{"connector", "outcome"})
	connectorDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_call_duration_seconds",
		Help:    "Duration of outbound connector calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "operation"})
	connectorErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_errors_total",
		Help: "Transient connector failures by connector.",
	}, []string{"connector", "operation"})
	reg.MustRegister(confirmations, authentications, connectorDuration, connectorErrors)
	return &SwitchMetrics{
		confirmations:     confirmations,
		authentications:   authentications,
		connectorDuration: connectorDuration,
		connectorErrors:   connectorErrors,
	}
}

// IncConfirmation counts one confirmation reaching the given status.
func (m *SwitchMetrics) IncConfirmation(status string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncAuthentication counts one authentication outcome for the connector.
func (m *SwitchMetrics) IncAuthentication(connector, outcome string) {
	if m == nil || m.authentications == nil {
		return
	}
	m.authentications.WithLabelValues(normalizeLabel(connector), normalizeLabel(outcome)).Inc()
}

// ObserveConnectorCall records the duration of one outbound connector call.
func (m *SwitchMetrics) ObserveConnectorCall(connector, operation string, duration time.Duration) {
	if m == nil || m.connectorDuration == nil {
		return
	}
	m.connectorDuration.WithLabelValues(normalizeLabel(connector), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncConnectorError counts one transient connector failure.
func (m *SwitchMetrics) IncConnectorError(connector, operation string) {
	if m == nil || m.connectorErrors == nil {
		return
	}
	m.connectorErrors.WithLabelValues(normalizeLabel(connector), normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
