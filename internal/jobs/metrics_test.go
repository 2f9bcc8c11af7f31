package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("books:integrity_check").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("books:integrity_check").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, registry, "ledgerdesk_jobs_total", map[string]string{"job": "books:integrity_check", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, registry, "ledgerdesk_jobs_total", map[string]string{"job": "books:integrity_check", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, registry, "ledgerdesk_jobs_failures_total", map[string]string{"job": "books:integrity_check"}))
}

func TestImbalanceAndAlertCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AddImbalance()
	metrics.AddImbalance()
	metrics.AddAlert("published")
	metrics.AddAlert("")

	require.Equal(t, 2.0, counterValue(t, registry, "ledgerdesk_trial_balance_imbalances_total", nil))
	require.Equal(t, 1.0, counterValue(t, registry, "ledgerdesk_trial_balance_alerts_total", map[string]string{"outcome": "published"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AddImbalance()
	metrics.AddAlert("failed")
	require.NoError(t, metrics.Track("noop").End(nil))
}
