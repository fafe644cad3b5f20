package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookDeliveries, webhookDuration)
}

var (
	// result: processed|ignored|rejected|error
	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_deliveries_total",
			Help:      "Inbound payment confirmations by rail and result.",
		},
		[]string{"rail", "result"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_webhook_duration_seconds",
			Help:      "Time spent handling a payment confirmation.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"rail"},
	)
)

func IncWebhook(rail, result string) {
	webhookDeliveries.WithLabelValues(norm(rail), norm(result)).Inc()
}

func ObserveWebhook(rail string, seconds float64) {
	webhookDuration.WithLabelValues(norm(rail)).Observe(seconds)
}
