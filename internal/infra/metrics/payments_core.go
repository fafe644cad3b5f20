package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentIntentsTotal,
		paymentsRevenueTotal,
		railLatency,
	)
}

var (
	paymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intents_total",
			Help:      "Payment intents by rail and status (created/submitted/confirmed/failed).",
		},
		[]string{"rail", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_revenue_total",
			Help:      "The total monetary value of confirmed payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	railLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_rail_call_duration_seconds",
			Help:      "Duration of outbound calls to payment rails.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"rail", "op", "result"},
	)
)

func IncIntent(rail, status string) {
	paymentIntentsTotal.WithLabelValues(norm(rail), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	if amount <= 0 {
		return
	}
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func ObserveRailCall(rail, op string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	railLatency.WithLabelValues(norm(rail), norm(op), result).Observe(seconds)
}
