package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider implements Provider on top of a prometheus.Registerer,
// for callers who already expose a /metrics endpoint via client_golang.
// Instruments are created on demand by name and reused for the same name,
// mirroring BasicProvider's create-once semantics.
type PrometheusProvider struct {
	reg prometheus.Registerer

	counters   map[string]*prometheus.CounterVec
	updowns    map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusProvider constructs a Provider backed by reg. Pass
// prometheus.DefaultRegisterer to expose instruments on the default
// /metrics handler.
func NewPrometheusProvider(reg prometheus.Registerer) *PrometheusProvider {
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		updowns:    make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func metricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func labelsFrom(cfg InstrumentConfig) ([]string, prometheus.Labels) {
	if len(cfg.Attributes) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(cfg.Attributes))
	values := make(prometheus.Labels, len(cfg.Attributes))
	for k, v := range cfg.Attributes {
		names = append(names, k)
		values[k] = v
	}
	return names, values
}

func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	cfg := applyOptions(opts)
	if c, ok := p.counters[name]; ok {
		return &promCounter{vec: c}
	}
	labelNames, labelValues := labelsFrom(cfg)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName(name),
		Help: cfg.Description,
	}, labelNames)
	p.reg.MustRegister(vec)
	p.counters[name] = vec
	return &promCounter{vec: vec, labels: labelValues}
}

func (p *PrometheusProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	cfg := applyOptions(opts)
	if g, ok := p.updowns[name]; ok {
		return &promUpDownCounter{vec: g}
	}
	labelNames, labelValues := labelsFrom(cfg)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricName(name),
		Help: cfg.Description,
	}, labelNames)
	p.reg.MustRegister(vec)
	p.updowns[name] = vec
	return &promUpDownCounter{vec: vec, labels: labelValues}
}

func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	cfg := applyOptions(opts)
	if h, ok := p.histograms[name]; ok {
		return &promHistogram{vec: h}
	}
	labelNames, labelValues := labelsFrom(cfg)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: metricName(name),
		Help: cfg.Description,
	}, labelNames)
	p.reg.MustRegister(vec)
	p.histograms[name] = vec
	return &promHistogram{vec: vec, labels: labelValues}
}

type promCounter struct {
	vec    *prometheus.CounterVec
	labels prometheus.Labels
}

func (c *promCounter) Add(n int64) { c.vec.With(c.labels).Add(float64(n)) }

type promUpDownCounter struct {
	vec    *prometheus.GaugeVec
	labels prometheus.Labels
}

func (u *promUpDownCounter) Add(n int64) { u.vec.With(u.labels).Add(float64(n)) }

type promHistogram struct {
	vec    *prometheus.HistogramVec
	labels prometheus.Labels
}

func (h *promHistogram) Record(v float64) { h.vec.With(h.labels).Observe(v) }
