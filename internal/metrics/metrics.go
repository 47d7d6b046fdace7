package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics holds the storefront collectors. A nil *Metrics records nothing.
type Metrics struct {
	OrdersPlaced        prometheus.Counter
	NotificationsFailed prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	BreakerState        *prometheus.GaugeVec
}

func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders persisted to the ledger.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_notifications_failed_total",
			Help:      "Order confirmations that could not be sent.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}

	registerer.MustRegister(
		m.OrdersPlaced,
		m.NotificationsFailed,
		m.HTTPRequests,
		m.HTTPDuration,
		m.BreakerState,
	)

	return m
}

func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// BreakerStateChanged matches circuitbreaker.Config.OnStateChange.
func (m *Metrics) BreakerStateChanged(name string, from, to circuitbreaker.State) {
	m.SetBreakerState(name, to)
}

func (m *Metrics) SetBreakerState(name string, state circuitbreaker.State) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := tracing.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		m.ObserveRequest(r.Method, tracing.RouteTemplate(r), rw.Status(), time.Since(start))
	})
}
