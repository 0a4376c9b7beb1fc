package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Confirmation outcomes recorded by ConfirmationsTotal.
const (
	ResultPaid             = "paid"
	ResultAlreadyConfirmed = "already_confirmed"
	ResultUnpaid           = "unpaid"
	ResultError            = "error"
)

// Metrics holds the collectors of one server instance on a private registry,
// so tests can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ConfirmationsTotal  *prometheus.CounterVec
	CheckoutSessions    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		ConfirmationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcel_payments_confirmed_total",
				Help: "Payment confirmations by outcome",
			},
			[]string{"result"},
		),
		CheckoutSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_sessions_created_total",
				Help: "Checkout sessions requested from the gateway",
			},
			[]string{"status"},
		),
	}

	m.Registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ConfirmationsTotal,
		m.CheckoutSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveConfirmation is safe on a nil receiver.
func (m *Metrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.WithLabelValues(result).Inc()
}

// ObserveCheckout is safe on a nil receiver.
func (m *Metrics) ObserveCheckout(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CheckoutSessions.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
