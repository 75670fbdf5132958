package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental_checkout", Name: "estimates_total", Help: "Price estimates by result"},
		[]string{"result"},
	)
	EstimateLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "rental_checkout", Name: "estimate_latency_seconds", Help: "Pricing engine round-trip seconds"})
	BookingsCreated  = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "rental_checkout", Name: "bookings_created_total", Help: "Booking creation attempts by result"}, []string{"result"})
	EntryGuardTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rental_checkout", Name: "handoff_entry_guard_total", Help: "Checkout entries rejected for a missing or unreadable handoff bundle"})
	PaymentInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental_checkout", Name: "payment_initiations_total", Help: "Payment initiations by gateway and result"},
		[]string{"gateway", "result"},
	)
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental_checkout", Name: "checkout_state_transitions_total", Help: "Checkout state machine transitions by target state"},
		[]string{"to"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental_checkout", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental_checkout",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
