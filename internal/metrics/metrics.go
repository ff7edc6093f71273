package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidybeast",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tidybeast",
			Name:      "bookings_confirmed_total",
			Help:      "Bookings durably confirmed.",
		},
	)

	pricingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tidybeast",
			Name:      "pricing_fallbacks_total",
			Help:      "Price lookups resolved via the default catalog entry.",
		},
	)

	notifyAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidybeast",
			Name:      "notify_attempts_total",
			Help:      "Notification delivery attempts by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsConfirmed, pricingFallbacks, notifyAttempts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingConfirmed counts a durably stored confirmation.
func IncBookingConfirmed() {
	bookingsConfirmed.Inc()
}

// IncPricingFallback counts a default-catalog price resolution.
func IncPricingFallback() {
	pricingFallbacks.Inc()
}

// IncNotifyAttempt counts one channel attempt; outcome is "ok" or "error".
func IncNotifyAttempt(channel, outcome string) {
	notifyAttempts.WithLabelValues(channel, outcome).Inc()
}
