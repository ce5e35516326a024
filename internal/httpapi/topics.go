package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/broker"
	"github.com/gmslzr/kafka-gateway/internal/metrics"
	"github.com/gmslzr/kafka-gateway/internal/quota"
	"github.com/gmslzr/kafka-gateway/internal/store"
	"github.com/gmslzr/kafka-gateway/internal/stream"
)

// maxPayloadSize is the per-message cap on the publish path, per spec.md
// §4.7.
const maxPayloadSize = 64 * 1024

type topicView struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	BrokerName string `json:"broker_name"`
	CreatedAt  string `json:"created_at"`
}

// ListTopics handles GET /topics: bearer sees every topic across the
// tenant's projects, an API key sees only its own scoped project.
func (s *Server) ListTopics(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var topics []*store.Topic
	var err error
	if identity.ViaAPIKey {
		topics, err = s.Topics.ListByProject(r.Context(), *identity.ProjectID)
	} else {
		topics, err = s.Topics.ListByTenant(r.Context(), identity.TenantID)
	}
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to list topics", err))
		return
	}

	views := make([]topicView, 0, len(topics))
	for _, t := range topics {
		views = append(views, topicView{ID: t.ID.String(), ProjectID: t.ProjectID.String(), Name: t.Name, BrokerName: t.BrokerName, CreatedAt: t.CreatedAt.UTC().Format(rfc3339)})
	}
	writeJSON(w, http.StatusOK, views)
}

// resolveTopic implements the tenant+project+topic resolution shared by
// publish and stream: an API key carries its project; a bearer token
// resolves the tenant's default project. The topic is then looked up by
// display name, falling back to broker name, per spec.md §4.7 step 2.
func (s *Server) resolveTopic(ctx context.Context, identity *auth.Identity, name string) (*store.Topic, error) {
	var projectID = identity.ProjectID
	if projectID == nil {
		project, err := s.Projects.GetDefault(ctx, identity.TenantID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindNotFound, "no default project for tenant", err)
		}
		projectID = &project.ID
	}

	topic, err := s.Topics.GetByDisplayName(ctx, *projectID, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "topic not found", err)
	}
	return topic, nil
}

type publishAck struct {
	Published int `json:"published"`
}

// Publish handles POST /topics/{name}/publish: validate, quota
// check-and-increment, produce, log — the sequence in spec.md §4.7.
func (s *Server) Publish(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	topic, err := s.resolveTopic(r.Context(), identity, name)
	if err != nil {
		writeAppErr(w, r, err)
		return
	}

	var req struct {
		Messages []json.RawMessage `json:"messages"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "failed to read request body", err))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	if len(req.Messages) == 0 {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "at least one message is required"))
		return
	}

	var totalBytes int64
	values := make([][]byte, len(req.Messages))
	for i, m := range req.Messages {
		compact := bytes.TrimSpace(m)
		if len(compact) > maxPayloadSize {
			writeAppErr(w, r, apperr.New(apperr.KindPayloadTooBig, fmt.Sprintf("message at index %d exceeds maximum payload size", i)))
			return
		}
		values[i] = compact
		totalBytes += int64(len(compact))
	}

	project, err := s.Projects.GetByID(r.Context(), topic.ProjectID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to resolve topic's project", err))
		return
	}

	if err := s.Quota.CheckAndIncrement(r.Context(), project.TenantID, project.ID, quota.DirectionIn, int64(len(values)), totalBytes); err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindQuotaBreach {
			metrics.QuotaBreachTotal.WithLabelValues("user_or_global", "in").Inc()
		}
		metrics.PublishTotal.WithLabelValues("quota_rejected").Inc()
		writeAppErr(w, r, err)
		return
	}

	produceStart := time.Now()
	err = s.Broker.ProduceBatch(r.Context(), topic.BrokerName, values)
	metrics.BrokerProduceDuration.Observe(time.Since(produceStart).Seconds())
	if err != nil {
		// Quota is already debited; the over-count on broker failure is
		// the explicit trade-off spec.md §7 documents.
		metrics.PublishTotal.WithLabelValues("broker_error").Inc()
		writeAppErr(w, r, apperr.Wrap(apperr.KindBrokerFailure, "failed to produce messages", err))
		return
	}

	metrics.PublishTotal.WithLabelValues("ok").Inc()
	log.Ctx(r.Context()).Info().Str("event", "publish").Str("topic", topic.Name).Int("count", len(values)).Int64("bytes", totalBytes).Msg("messages published")
	writeJSON(w, http.StatusOK, publishAck{Published: len(values)})
}

// Stream handles GET /topics/{name}/stream: admit, spawn consumer, pump
// SSE with heartbeats, account outbound quota, drain on exit — spec.md
// §4.8.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	topic, err := s.resolveTopic(r.Context(), identity, name)
	if err != nil {
		writeAppErr(w, r, err)
		return
	}
	project, err := s.Projects.GetByID(r.Context(), topic.ProjectID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to resolve topic's project", err))
		return
	}

	connID, ok := s.Registry.Admit(project.TenantID, topic.Name)
	if !ok {
		writeAppErr(w, r, apperr.New(apperr.KindStreamLimit, "stream_limit_exceeded"))
		return
	}
	defer s.Registry.Remove(project.TenantID, connID)

	group := project.TenantID.String() + "_stream_" + connID
	consumer, err := broker.OpenConsumer(s.Config.KafkaBootstrapServers, topic.BrokerName, group)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindBrokerFailure, "failed to open stream consumer", err))
		return
	}

	metrics.StreamConnectionsActive.Inc()
	defer metrics.StreamConnectionsActive.Dec()

	checkOutbound := func(ctx context.Context, messages, bytesCount int64) error {
		err := s.Quota.CheckAndIncrement(ctx, project.TenantID, project.ID, quota.DirectionOut, messages, bytesCount)
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindQuotaBreach {
			metrics.QuotaBreachTotal.WithLabelValues("user", "out").Inc()
		}
		return err
	}

	reason := stream.Pump(r.Context(), w, *log.Ctx(r.Context()), consumer, checkOutbound)
	log.Ctx(r.Context()).Info().Str("event", "stream_end").Str("topic", topic.Name).Str("reason", string(reason)).Msg("stream ended")
}
