package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gmslzr/kafka-gateway/internal/quota"
	"github.com/gmslzr/kafka-gateway/internal/registry"
	"github.com/gmslzr/kafka-gateway/internal/testutil"
)

// seedTopic inserts a topic row under the tenant's default project. The
// broker name is never dialed by these tests: every scenario below fails
// (or, in the one broker-gated case, succeeds) before or via
// s.Broker.ProduceBatch, never CreateTopic/DeleteTopic.
func seedTopic(ctx context.Context, t *testing.T, s *Server, projectID uuid.UUID, displayName string) {
	t.Helper()
	_, err := s.Topics.Create(ctx, projectID, displayName, "broker_topic_"+displayName+"_"+projectID.String())
	require.NoError(t, err)
}

func doPublish(srv *Server, token, topic, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/topics/"+topic+"/publish", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestPublish_TopicNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "publish-404@example.com")
	rec := doPublish(srv, tenant.Token, "does-not-exist", `{"messages":["hi"]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublish_EmptyMessagesRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "publish-empty@example.com")
	seedTopic(ctx, t, srv, tenant.ProjectID, "events")

	rec := doPublish(srv, tenant.Token, "events", `{"messages":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublish_PayloadTooLargeRejectedBeforeQuotaOrBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "publish-too-big@example.com")
	seedTopic(ctx, t, srv, tenant.ProjectID, "events")

	oversized := `"` + strings.Repeat("x", 70*1024) + `"`
	rec := doPublish(srv, tenant.Token, "events", `{"messages":[`+oversized+`]}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPublish_DailyTenantLimitBreach(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "publish-daily-limit@example.com")
	seedTopic(ctx, t, srv, tenant.ProjectID, "events")
	seedUsageRow(ctx, t, srv, tenant.TenantID, tenant.ProjectID, quota.FreeTierMessagesLimit, 0)

	rec := doPublish(srv, tenant.Token, "events", `{"messages":["one more"]}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPublish_GlobalPanicBrake(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "publish-panic-brake@example.com")
	seedTopic(ctx, t, srv, tenant.ProjectID, "events")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := pool.Exec(ctx, `
		INSERT INTO global_usage_counters (day, messages_in) VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET messages_in = $2
	`, today, quota.MaxMessagesIn)
	require.NoError(t, err)

	rec := doPublish(srv, tenant.Token, "events", `{"messages":["one more"]}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// TestPublish_SuccessProducesToBroker is the one scenario in this file that
// needs a reachable Kafka broker; it's skipped unless
// TEST_KAFKA_BOOTSTRAP_SERVERS is configured.
func TestPublish_SuccessProducesToBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	srv.Broker = testutil.OpenTestBroker(t)
	ctx := context.Background()

	// TestPublish_GlobalPanicBrake leaves today's global counter at the
	// cluster-wide limit; clear it so this publish is not rejected.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := pool.Exec(ctx, `DELETE FROM global_usage_counters WHERE day = $1`, today)
	require.NoError(t, err)

	tenant := seedTenant(ctx, t, srv, "publish-success@example.com")
	require.NoError(t, srv.Broker.CreateTopic(ctx, "broker_topic_events_success"))
	_, err = srv.Topics.Create(ctx, tenant.ProjectID, "events-success", "broker_topic_events_success")
	require.NoError(t, err)

	rec := doPublish(srv, tenant.Token, "events-success", `{"messages":[{"hello":"world"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestStream_LimitExceededRejectsBeforeOpeningConsumer pre-saturates the
// registry so the stream-limit check fails before the handler ever reaches
// broker.OpenConsumer, so no live Kafka is required.
func TestStream_LimitExceededRejectsBeforeOpeningConsumer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, pool := newTestServer(t)
	defer pool.Close()
	ctx := context.Background()

	tenant := seedTenant(ctx, t, srv, "stream-limit@example.com")
	seedTopic(ctx, t, srv, tenant.ProjectID, "events")

	for i := 0; i < registry.MaxStreamsPerTenant; i++ {
		_, ok := srv.Registry.Admit(tenant.TenantID, "events")
		require.True(t, ok)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/topics/events/stream", nil)
	req.Header.Set("Authorization", "Bearer "+tenant.Token)
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
