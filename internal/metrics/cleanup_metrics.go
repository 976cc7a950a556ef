package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CleanupMetrics описывает работу очистки просроченных ключей идемпотентности.
type CleanupMetrics struct {
	sweeps      *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewCleanupMetricsWithRegisterer создаёт метрики очистки в registerer.
func NewCleanupMetricsWithRegisterer(registerer prometheus.Registerer) *CleanupMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &CleanupMetrics{
		sweeps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_idempotency_sweeps_total",
			Help: "Idempotency key sweeps grouped by result (ok, truncated, error)",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_idempotency_keys_deleted_total",
			Help: "Expired invoice idempotency keys removed",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_idempotency_sweep_last_deleted",
			Help: "Keys removed by the most recent sweep",
		}),
		lastSuccess: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_idempotency_sweep_last_success_timestamp_seconds",
			Help: "Unix time of the most recent successful sweep",
		}),
	}
}

// RecordSweep учитывает завершённый проход очистки.
func (m *CleanupMetrics) RecordSweep(deleted int, truncated bool, at time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if truncated {
		result = "truncated"
	}
	m.sweeps.WithLabelValues(result).Inc()
	m.deleted.Add(float64(deleted))
	m.lastDeleted.Set(float64(deleted))
	m.lastSuccess.Set(float64(at.Unix()))
}

// RecordSweepError учитывает неудачный проход.
func (m *CleanupMetrics) RecordSweepError() {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues("error").Inc()
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerGaugeVec(registerer prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	collector := prometheus.NewGaugeVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge vec %q: %v", opts.Name, err))
	}
	return collector
}
