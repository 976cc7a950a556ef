package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestCleanupMetricsRecordSweep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCleanupMetricsWithRegisterer(reg)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.RecordSweep(7, false, at)
	m.RecordSweep(3, true, at.Add(time.Minute))
	m.RecordSweepError()

	if got := counterValue(t, m.deleted); got != 10 {
		t.Fatalf("expected 10 deleted keys, got %v", got)
	}
	if got := gaugeValue(t, m.lastDeleted); got != 3 {
		t.Fatalf("expected last sweep to report 3, got %v", got)
	}
	if got := gaugeValue(t, m.lastSuccess); got != float64(at.Add(time.Minute).Unix()) {
		t.Fatalf("unexpected last success timestamp %v", got)
	}
	for result, want := range map[string]float64{"ok": 1, "truncated": 1, "error": 1} {
		if got := counterValue(t, m.sweeps.WithLabelValues(result)); got != want {
			t.Fatalf("sweeps{result=%q}: got %v want %v", result, got, want)
		}
	}
}

func TestCleanupMetricsReuseAndNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewCleanupMetricsWithRegisterer(reg)
	second := NewCleanupMetricsWithRegisterer(reg)

	first.RecordSweep(1, false, time.Now())
	second.RecordSweep(1, false, time.Now())
	if got := counterValue(t, first.deleted); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}

	var disabled *CleanupMetrics
	disabled.RecordSweep(1, false, time.Now())
	disabled.RecordSweepError()
}
