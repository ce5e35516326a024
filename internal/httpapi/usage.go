package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

type metricsView struct {
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
	BytesIn     int64 `json:"bytes_in"`
	BytesOut    int64 `json:"bytes_out"`
}

func toMetricsView(m store.Metrics) metricsView {
	return metricsView{MessagesIn: m.MessagesIn, MessagesOut: m.MessagesOut, BytesIn: m.BytesIn, BytesOut: m.BytesOut}
}

// resolveUsageProject parses the optional project/project_id selector
// shared by both auth modes and validates it belongs to the caller's
// tenant. An API key is itself scoped to one project, so an explicit
// selector must match that scope rather than letting the key peek at a
// sibling project within the same tenant.
func (s *Server) resolveUsageProject(r *http.Request, identity *auth.Identity) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("project")
	if raw == "" {
		raw = r.URL.Query().Get("project_id")
	}
	if raw == "" {
		return nil, nil
	}

	projectID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "project must be a valid UUID")
	}

	project, err := s.Projects.GetByID(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "project not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to resolve project", err)
	}
	if project.TenantID != identity.TenantID {
		return nil, apperr.New(apperr.KindNotFound, "project not found")
	}
	if identity.ViaAPIKey && (identity.ProjectID == nil || *identity.ProjectID != project.ID) {
		return nil, apperr.New(apperr.KindForbidden, "api key is not scoped to this project")
	}

	return &project.ID, nil
}

// Usage handles GET /usage: current-day metrics, aggregated across the
// tenant's projects by default or scoped to one project when the caller
// passes ?project=<id> (or ?project_id=<id>) — for both bearer and
// API-key callers. An API-key caller with no selector defaults to its own
// scoped project rather than the tenant-wide aggregate.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	today := time.Now().UTC().Truncate(24 * time.Hour)

	projectID, err := s.resolveUsageProject(r, identity)
	if err != nil {
		writeAppErr(w, r, err)
		return
	}
	if projectID == nil && identity.ViaAPIKey {
		projectID = identity.ProjectID
	}

	if projectID != nil {
		m, err := s.Usage.ForProject(r.Context(), identity.TenantID, *projectID, today)
		if err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to load usage", err))
			return
		}
		writeJSON(w, http.StatusOK, toMetricsView(m))
		return
	}

	m, err := s.Usage.AggregateForTenant(r.Context(), identity.TenantID, today)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to load usage", err))
		return
	}
	writeJSON(w, http.StatusOK, toMetricsView(m))
}

type projectUsageView struct {
	ProjectID   string      `json:"project_id"`
	ProjectName string      `json:"project_name"`
	Metrics     metricsView `json:"metrics"`
}

// UsageProjects handles GET /usage/projects: bearer-only per-project
// breakdown.
func (s *Server) UsageProjects(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	today := time.Now().UTC().Truncate(24 * time.Hour)

	breakdown, err := s.Usage.PerProjectBreakdown(r.Context(), identity.TenantID, today)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to load per-project usage", err))
		return
	}

	views := make([]projectUsageView, 0, len(breakdown))
	for _, pu := range breakdown {
		views = append(views, projectUsageView{ProjectID: pu.ProjectID.String(), ProjectName: pu.ProjectName, Metrics: toMetricsView(pu.Metrics)})
	}
	writeJSON(w, http.StatusOK, views)
}
