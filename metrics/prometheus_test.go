package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestPrometheusProvider_CounterReusedAndAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusProvider(reg)

	c1 := p.Counter("tasks.enqueued")
	c1.Add(3)
	c2 := p.Counter("tasks.enqueued")
	c2.Add(2)

	mf, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := findCounterValue(t, mf, "tasks_enqueued")
	if got != 5 {
		t.Fatalf("counter value = %v; want 5", got)
	}
}

func TestPrometheusProvider_HistogramRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusProvider(reg)

	h := p.Histogram("exec_seconds")
	h.Record(0.1)
	h.Record(0.2)

	mf, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, m := range mf {
		if m.GetName() == "exec_seconds" {
			return
		}
	}
	t.Fatalf("exec_seconds histogram not found in %v", mf)
}

func findCounterValue(t *testing.T, mf []*io_prometheus_client.MetricFamily, name string) float64 {
	t.Helper()
	for _, m := range mf {
		if m.GetName() != name {
			continue
		}
		for _, metric := range m.GetMetric() {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}
