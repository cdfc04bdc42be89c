package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the coordinator's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	reg          *prometheus.Registry
	sagaOutcomes *prometheus.CounterVec
	fulfillment  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		reg: reg,
		sagaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_saga_outcomes_total",
			Help: "Create-order sagas by final outcome.",
		}, []string{"outcome"}),
		fulfillment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_fulfillment_events_total",
			Help: "Warehouse fulfillment events by kind and how they were applied.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.sagaOutcomes, m.fulfillment)
	return m
}

func (m *Metrics) SagaOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sagaOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FulfillmentEvent(event, result string) {
	if m == nil {
		return
	}
	m.fulfillment.WithLabelValues(event, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
