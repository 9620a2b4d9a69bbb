package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/streamflow/metrics"
)

func TestNewMetricsProviderSelectsImplementation(t *testing.T) {
	noop, err := NewMetricsProvider(RuntimeOptions{Metrics: MetricsProviderNoop}, nil)
	require.NoError(t, err)
	require.IsType(t, metrics.NoopProvider{}, noop)

	basic, err := NewMetricsProvider(RuntimeOptions{Metrics: MetricsProviderBasic}, nil)
	require.NoError(t, err)
	require.IsType(t, &metrics.BasicProvider{}, basic)

	reg := prometheus.NewRegistry()
	prom, err := NewMetricsProvider(RuntimeOptions{Metrics: MetricsProviderPrometheus}, reg)
	require.NoError(t, err)
	require.IsType(t, &metrics.PrometheusProvider{}, prom)
}

func TestNewMetricsProviderRejectsUnknown(t *testing.T) {
	_, err := NewMetricsProvider(RuntimeOptions{Metrics: "bogus"}, nil)
	require.Error(t, err)
}
