package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSwitchMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSwitchMetrics(reg)

	m.IncConfirmation("captured")
	m.IncConfirmation("captured")
	m.IncAuthentication("threedsecureio", "frictionless_pass")
	m.IncConnectorError("amazonpay", "authorize")
	m.ObserveConnectorCall("amazonpay", "authorize", 120*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.confirmations.WithLabelValues("captured")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authentications.WithLabelValues("threedsecureio", "frictionless_pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectorErrors.WithLabelValues("amazonpay", "authorize")))
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewSwitchMetrics(nil)
	m.IncConfirmation("captured")
	m.IncAuthentication("", "")
	m.ObserveConnectorCall("", "", time.Second)
	m.IncConnectorError("", "")
}
