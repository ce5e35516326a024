package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesPrometheusExposition(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gateway_publish_total")
	assert.Contains(t, rec.Body.String(), "gateway_stream_connections_active")
}

func TestCollectorsAreIncrementable(t *testing.T) {
	PublishTotal.WithLabelValues("ok").Inc()
	QuotaBreachTotal.WithLabelValues("user", "in").Inc()
	StreamConnectionsActive.Inc()
	StreamConnectionsActive.Dec()
	BrokerProduceDuration.Observe(0.01)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gateway_publish_total{status="ok"}`)
	assert.Contains(t, rec.Body.String(), `gateway_quota_breach_total{dim="in",scope="user"}`)
}
