// Package httpapi wires the gateway's HTTP surface: chi routing, request
// handlers, and the shared Server struct every handler closes over —
// adapted from the teacher's httpapi package, which threaded a
// *pgxpool.Pool and per-service structs the same way.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/broker"
	"github.com/gmslzr/kafka-gateway/internal/config"
	"github.com/gmslzr/kafka-gateway/internal/quota"
	"github.com/gmslzr/kafka-gateway/internal/ratelimit"
	"github.com/gmslzr/kafka-gateway/internal/registry"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

const rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"

// Server holds every dependency the handlers need, constructed once at
// startup in cmd/server/main.go.
type Server struct {
	Config *config.Config
	DB     *pgxpool.Pool // used only for the cross-repo signup/delete transactions

	Tenants  *store.TenantRepo
	Projects *store.ProjectRepo
	Topics   *store.TopicRepo
	Keys     *store.APIKeyRepo
	Usage    *store.UsageRepo

	Resolver *auth.Resolver
	Registry *registry.Registry
	Quota    *quota.Engine
	Broker   *broker.Broker
	Limiter  ratelimit.Bucket
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a plain error message under the given status.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message, RequestID: RequestID(r.Context())})
}

// writeAppErr translates a typed *apperr.Error (or any error) into the
// response shape §7 specifies, logging quota breaches and unhandled
// exceptions at the levels the structured-log schema requires.
func writeAppErr(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		log.Ctx(r.Context()).Error().Err(err).Str("event", "unhandled_exception").Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", RequestID: RequestID(r.Context())})
		return
	}

	if ae.Kind == apperr.KindQuotaBreach {
		log.Ctx(r.Context()).Warn().Str("event", "rate_limit_quota_breach").Str("reason", ae.Reason).Msg(ae.Reason)
	}

	writeJSON(w, ae.HTTPStatus(), errorResponse{
		Error:     string(ae.Kind),
		Reason:    ae.Reason,
		RequestID: RequestID(r.Context()),
	})
}

// identityKeyFunc is the ratelimit.IdentityKeyFunc realization for this
// server: tenant identity if auth already resolved it, else client address,
// per spec.md §4.9.
func identityKeyFunc(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return "user:" + id.TenantID.String()
	}
	return "addr:" + r.RemoteAddr
}
