package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ygrebnov/streamflow/metrics"
)

// NewMetricsProvider constructs the metrics.Provider named by
// o.Metrics. Prometheus registers its instruments against reg; pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetricsProvider(o RuntimeOptions, reg prometheus.Registerer) (metrics.Provider, error) {
	switch o.Metrics {
	case "", MetricsProviderNoop:
		return metrics.NoopProvider{}, nil
	case MetricsProviderBasic:
		return metrics.NewBasicProvider(), nil
	case MetricsProviderPrometheus:
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		return metrics.NewPrometheusProvider(reg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricsProvider, o.Metrics)
	}
}
