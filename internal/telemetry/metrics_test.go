package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.SagaOutcome("processed")
	m.SagaOutcome("processed")
	m.FulfillmentEvent("ORDER_SHIPPED", "applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `order_saga_outcomes_total{outcome="processed"} 2`)
	assert.Contains(t, body, `order_fulfillment_events_total{event="ORDER_SHIPPED",result="applied"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SagaOutcome("processed")
		m.FulfillmentEvent("ITEMS_PICKED", "buffered")
	})
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "order-api", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
