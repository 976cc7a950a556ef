package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvoiceMetrics содержит метрики операций со счетами и остатками.
type InvoiceMetrics struct {
	invoicesCreated prometheus.Counter
	invoicesVoided  prometheus.Counter
	discounts       prometheus.Counter
	lineCorrections prometheus.Counter

	// failures размечены категорией ошибки (not_found, insufficient_stock, ...).
	failures         *prometheus.CounterVec
	stockAdjustments *prometheus.CounterVec

	buildDuration prometheus.Histogram
	invoiceAmount prometheus.Histogram
}

// NewInvoiceMetrics создаёт метрики в DefaultRegisterer.
func NewInvoiceMetrics() *InvoiceMetrics {
	return NewInvoiceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewInvoiceMetricsWithRegisterer создаёт метрики в переданном registerer.
// Повторная регистрация возвращает уже зарегистрированные коллекторы.
func NewInvoiceMetricsWithRegisterer(registerer prometheus.Registerer) *InvoiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InvoiceMetrics{
		invoicesCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_invoices_created_total",
			Help: "Total number of invoices created",
		}),
		invoicesVoided: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_invoices_voided_total",
			Help: "Total number of invoices voided",
		}),
		discounts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_discounts_applied_total",
			Help: "Total number of discounts applied to invoices",
		}),
		lineCorrections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_line_corrections_total",
			Help: "Total number of invoice line corrections",
		}),
		failures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_invoice_failures_total",
			Help: "Total number of failed invoice operations grouped by error kind",
		}, []string{"kind"}),
		stockAdjustments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_stock_adjustments_total",
			Help: "Total number of stock movements grouped by reason",
		}, []string{"reason"}),
		buildDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ims_invoice_build_duration_seconds",
			Help:    "Duration of invoice construction in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		invoiceAmount: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ims_invoice_amount",
			Help:    "Invoice totals at creation time",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordInvoiceCreated учитывает созданный счёт, его сумму и время сборки.
func (m *InvoiceMetrics) RecordInvoiceCreated(total float64, duration time.Duration) {
	m.invoicesCreated.Inc()
	m.invoiceAmount.Observe(total)
	m.buildDuration.Observe(duration.Seconds())
}

// RecordFailure увеличивает счётчик ошибок указанной категории.
func (m *InvoiceMetrics) RecordFailure(kind string) {
	if kind == "" {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// RecordDiscount увеличивает счётчик применённых скидок.
func (m *InvoiceMetrics) RecordDiscount() {
	m.discounts.Inc()
}

// RecordLineCorrection увеличивает счётчик исправленных позиций.
func (m *InvoiceMetrics) RecordLineCorrection() {
	m.lineCorrections.Inc()
}

// RecordVoid увеличивает счётчик аннулированных счетов.
func (m *InvoiceMetrics) RecordVoid() {
	m.invoicesVoided.Inc()
}

// RecordStockAdjustment учитывает движение остатка по причине.
func (m *InvoiceMetrics) RecordStockAdjustment(reason string) {
	m.stockAdjustments.WithLabelValues(reason).Inc()
}
