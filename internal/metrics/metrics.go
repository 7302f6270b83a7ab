package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/frahmantamala/smm-storefront/internal/core/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports. Collectors are bound to
// the registry passed to New so tests can use a private one.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsCreated *prometheus.CounterVec
	CallbacksTotal  *prometheus.CounterVec
	SettledTotal    *prometheus.CounterVec
	CreditedAmount  *prometheus.CounterVec
	UncreditedTotal prometheus.Counter
	HTTPLatency     *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		PaymentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_created_total",
				Help: "Payment creation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"}, // success|business|transport
		),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_callbacks_total",
				Help: "Gateway callbacks by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		SettledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_settled_total",
				Help: "Payments that reached a terminal status",
			},
			[]string{"provider", "status"},
		),
		CreditedAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balance_credited_amount_total",
				Help: "Sum of amounts credited to account balances",
			},
			[]string{"currency"},
		),
		UncreditedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "payments_uncredited_total",
				Help: "Completed payments with no account to credit",
			},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		m.PaymentsCreated,
		m.CallbacksTotal,
		m.SettledTotal,
		m.CreditedAmount,
		m.UncreditedTotal,
		m.HTTPLatency,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePaymentCreated(provider, outcome string) {
	m.PaymentsCreated.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveCallback(provider, outcome string) {
	m.CallbacksTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentCompleted, m.handlePaymentCompleted)
	bus.Subscribe(events.EventTypePaymentFailed, m.handlePaymentFailed)
}

func (m *Metrics) handlePaymentCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}

	m.SettledTotal.WithLabelValues(e.Provider, "completed").Inc()
	if !e.Credited {
		m.UncreditedTotal.Inc()
		return nil
	}
	amount, _ := e.Amount.Float64()
	m.CreditedAmount.WithLabelValues(e.Currency).Add(amount)
	return nil
}

func (m *Metrics) handlePaymentFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}
	m.SettledTotal.WithLabelValues(e.Provider, "failed").Inc()
	return nil
}
