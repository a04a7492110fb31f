package metrics

import (
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics counts checkout, webhook and key issuance outcomes
type BillingMetrics interface {
	IncTransactionCreated(cycle string)
	IncWebhookProcessed(status string)
	IncWebhookRejected(reason string)
	IncKeyIssuance(outcome string)
	ObservePaymentAmount(amount float64, status string)
}

type billingMetrics struct {
	log                 *logger.Logger
	transactionsCreated *prometheus.CounterVec
	webhooksProcessed   *prometheus.CounterVec
	webhooksRejected    *prometheus.CounterVec
	keyIssuance         *prometheus.CounterVec
	paymentAmounts      *prometheus.HistogramVec
}

// NewBillingMetrics creates new billing metrics
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	transactionsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_created_total",
			Help: "The total number of created checkout transactions by billing cycle",
		},
		[]string{"cycle"},
	)

	webhooksProcessed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_processed_total",
			Help: "The total number of processed payment webhooks by mapped status",
		},
		[]string{"status"},
	)

	webhooksRejected := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_rejected_total",
			Help: "The total number of rejected payment webhooks by reason",
		},
		[]string{"reason"},
	)

	keyIssuance := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikey_issuance_total",
			Help: "The total number of API key issuance attempts by outcome",
		},
		[]string{"outcome"},
	)

	paymentAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_amounts_idr",
			Help:    "Payment amounts distribution in IDR",
			Buckets: prometheus.ExponentialBuckets(100_000, 10, 4),
		},
		[]string{"status"},
	)

	return &billingMetrics{
		log:                 log,
		transactionsCreated: transactionsCreated,
		webhooksProcessed:   webhooksProcessed,
		webhooksRejected:    webhooksRejected,
		keyIssuance:         keyIssuance,
		paymentAmounts:      paymentAmounts,
	}
}

// IncTransactionCreated increments the created-transaction counter
func (m *billingMetrics) IncTransactionCreated(cycle string) {
	m.transactionsCreated.WithLabelValues(cycle).Inc()
}

// IncWebhookProcessed increments the processed-webhook counter
func (m *billingMetrics) IncWebhookProcessed(status string) {
	m.webhooksProcessed.WithLabelValues(status).Inc()
}

// IncWebhookRejected increments the rejected-webhook counter
func (m *billingMetrics) IncWebhookRejected(reason string) {
	m.webhooksRejected.WithLabelValues(reason).Inc()
}

// IncKeyIssuance increments the key issuance counter
func (m *billingMetrics) IncKeyIssuance(outcome string) {
	m.keyIssuance.WithLabelValues(outcome).Inc()
}

// ObservePaymentAmount records a payment amount
func (m *billingMetrics) ObservePaymentAmount(amount float64, status string) {
	m.paymentAmounts.WithLabelValues(status).Observe(amount)
}
