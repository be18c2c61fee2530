package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics содержит метрики жизненного цикла заказов и платежей.
type CommerceMetrics struct {
	// Счётчики checkout
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    prometheus.Counter

	// Счётчики webhook-реконсиляции
	webhookProcessed  *prometheus.CounterVec
	webhookDuplicates prometheus.Counter
	webhookRejected   prometheus.Counter

	// Счётчики возвратов
	refundsIssued prometheus.Counter
	refundsFailed prometheus.Counter
	manualRefunds prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	webhookDuration  prometheus.Histogram

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewCommerceMetrics создаёт новый экземпляр метрик в default registry.
func NewCommerceMetrics() *CommerceMetrics {
	return newCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout attempts started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_completed_total",
			Help: "Total number of checkouts with a payment session created",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "Total number of failed checkout attempts",
		}),
		webhookProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Total number of webhook events applied grouped by type",
		}, []string{"type"}),
		webhookDuplicates: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_duplicates_total",
			Help: "Total number of webhook events skipped as already processed",
		}),
		webhookRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_rejected_total",
			Help: "Total number of webhook events rejected by signature verification",
		}),
		refundsIssued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_refunds_issued_total",
			Help: "Total number of refunds issued via the gateway",
		}),
		refundsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_refunds_failed_total",
			Help: "Total number of refund attempts rejected or failed",
		}),
		manualRefunds: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_refunds_manual_total",
			Help: "Total number of cancellations flagged for manual refund handling",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		webhookDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_webhook_duration_seconds",
			Help:    "Duration of webhook event processing in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of order timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
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

// RecordCheckoutStarted увеличивает счётчик начатых checkout.
func (m *CommerceMetrics) RecordCheckoutStarted() { m.checkoutStarted.Inc() }

// RecordCheckoutCompleted увеличивает счётчик успешных checkout.
func (m *CommerceMetrics) RecordCheckoutCompleted() { m.checkoutCompleted.Inc() }

// RecordCheckoutFailed увеличивает счётчик неудачных checkout.
func (m *CommerceMetrics) RecordCheckoutFailed() { m.checkoutFailed.Inc() }

// RecordCheckoutDuration записывает время создания заказа.
func (m *CommerceMetrics) RecordCheckoutDuration(d time.Duration) {
	m.checkoutDuration.Observe(d.Seconds())
}

// RecordWebhookProcessed увеличивает счётчик применённых событий данного типа.
func (m *CommerceMetrics) RecordWebhookProcessed(eventType string) {
	m.webhookProcessed.WithLabelValues(eventType).Inc()
}

// RecordWebhookDuplicate увеличивает счётчик отсечённых повторов.
func (m *CommerceMetrics) RecordWebhookDuplicate() { m.webhookDuplicates.Inc() }

// RecordWebhookRejected увеличивает счётчик событий с неверной подписью.
func (m *CommerceMetrics) RecordWebhookRejected() { m.webhookRejected.Inc() }

// RecordWebhookDuration записывает время обработки события.
func (m *CommerceMetrics) RecordWebhookDuration(d time.Duration) {
	m.webhookDuration.Observe(d.Seconds())
}

// RecordRefundIssued увеличивает счётчик выполненных возвратов.
func (m *CommerceMetrics) RecordRefundIssued() { m.refundsIssued.Inc() }

// RecordRefundFailed увеличивает счётчик неуспешных возвратов.
func (m *CommerceMetrics) RecordRefundFailed() { m.refundsFailed.Inc() }

// RecordManualRefund увеличивает счётчик отмен, ушедших в ручную обработку.
func (m *CommerceMetrics) RecordManualRefund() { m.manualRefunds.Inc() }

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CommerceMetrics) RecordTimelineEvent() { m.timelineEvents.Inc() }

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CommerceMetrics) RecordOutboxEvent() { m.outboxEvents.Inc() }
