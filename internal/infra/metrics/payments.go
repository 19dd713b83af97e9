package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookRequestsTotal,
		signatureFailuresTotal,
		duplicateDeliveriesTotal,
		paymentsCompletedTotal,
		paymentsRevenueTotal,
	)
}

var (
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Inbound provider callbacks by provider and outcome (ok/client_error/system_error).",
		},
		[]string{"provider", "outcome"},
	)

	signatureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signature_failures_total",
			Help: "Callbacks rejected by signature or credential verification.",
		},
		[]string{"provider"},
	)

	duplicateDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_duplicate_deliveries_total",
			Help: "Commit callbacks answered from the ledger without re-crediting.",
		},
		[]string{"provider"},
	)

	paymentsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Successfully reconciled payments by provider and plan.",
		},
		[]string{"provider", "plan"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of reconciled payments, labeled by provider.",
		},
		[]string{"provider"},
	)
)

func IncWebhook(provider, outcome string) {
	webhookRequestsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncSignatureFailure(provider string) {
	signatureFailuresTotal.WithLabelValues(norm(provider)).Inc()
}

func IncDuplicateDelivery(provider string) {
	duplicateDeliveriesTotal.WithLabelValues(norm(provider)).Inc()
}

func IncPaymentCompleted(provider, plan string, amount int64) {
	paymentsCompletedTotal.WithLabelValues(norm(provider), norm(plan)).Inc()
	paymentsRevenueTotal.WithLabelValues(norm(provider)).Add(float64(amount))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
