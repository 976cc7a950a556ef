package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics описывает ретранслятор событий счетов и остатков.
type OutboxMetrics struct {
	publishes     *prometheus.CounterVec
	pending       prometheus.Gauge
	oldestPending prometheus.Gauge
}

// NewOutboxMetricsWithRegisterer создаёт метрики outbox в registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &OutboxMetrics{
		publishes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_outbox_publish_total",
			Help: "Outbox publish outcomes by event type (sent, retry, dead_lettered, dlq_failed, deferred)",
		}, []string{"event_type", "result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_outbox_pending_records",
			Help: "Pending records in the transactional outbox",
		}),
		oldestPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox record",
		}),
	}
}

// RecordPublish учитывает исход публикации события eventType.
func (m *OutboxMetrics) RecordPublish(eventType, result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(eventType, result).Inc()
}

// SetBacklog выставляет размер очереди и возраст самого старого события.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 || pending == 0 {
		oldestAge = 0
	}
	m.pending.Set(float64(pending))
	m.oldestPending.Set(oldestAge.Seconds())
}
