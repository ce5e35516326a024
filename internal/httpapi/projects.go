package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/broker"
)

type projectView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	projects, err := s.Projects.ListByTenant(r.Context(), identity.TenantID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to list projects", err))
		return
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{ID: p.ID.String(), Name: p.Name, IsDefault: p.IsDefault, CreatedAt: p.CreatedAt.UTC().Format(rfc3339)})
	}
	writeJSON(w, http.StatusOK, views)
}

type createProjectReq struct {
	Name string `json:"name"`
}

// CreateProject handles POST /projects: bearer-only, auto-named when the
// caller doesn't supply one, and eagerly provisions a default topic the
// same way signup does.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var req createProjectReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	name := req.Name
	if name == "" {
		name = "project-" + uuid.New().String()[:8]
	}

	project, err := s.Projects.Create(r.Context(), identity.TenantID, name, false)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to create project", err))
		return
	}

	brokerName := broker.ProjectTopicName(project.ID.String())
	if err := s.Broker.CreateTopic(r.Context(), brokerName); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("event", "kafka_topic_create_failed").Str("broker_name", brokerName).Msg("failed to create project topic")
	}
	if _, err := s.Topics.Create(r.Context(), project.ID, randomDisplayName(), brokerName); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to create project topic row", err))
		return
	}

	writeJSON(w, http.StatusCreated, projectView{ID: project.ID.String(), Name: project.Name, IsDefault: project.IsDefault, CreatedAt: project.CreatedAt.UTC().Format(rfc3339)})
}

type renameProjectReq struct {
	Name string `json:"name"`
}

// RenameProject handles PATCH /projects/{id}.
func (s *Server) RenameProject(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "id must be a uuid"))
		return
	}
	project, err := s.Projects.GetByID(r.Context(), id)
	if err != nil || project.TenantID != identity.TenantID {
		writeAppErr(w, r, apperr.New(apperr.KindNotFound, "project not found"))
		return
	}

	var req renameProjectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "name is required"))
		return
	}
	if err := s.Projects.Rename(r.Context(), id, req.Name); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to rename project", err))
		return
	}
	writeJSON(w, http.StatusOK, projectView{ID: id.String(), Name: req.Name, IsDefault: project.IsDefault, CreatedAt: project.CreatedAt.UTC().Format(rfc3339)})
}

// DeleteProject handles DELETE /projects/{id}: best-effort broker topic
// teardown, then the relational cascade the repository performs.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "id must be a uuid"))
		return
	}
	project, err := s.Projects.GetByID(r.Context(), id)
	if err != nil || project.TenantID != identity.TenantID {
		writeAppErr(w, r, apperr.New(apperr.KindNotFound, "project not found"))
		return
	}

	topics, err := s.Topics.ListByProject(r.Context(), id)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to list topics for teardown", err))
		return
	}
	for _, t := range topics {
		if err := s.Broker.DeleteTopic(r.Context(), t.BrokerName); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Str("event", "kafka_topic_delete_failed").Str("broker_name", t.BrokerName).Msg("failed to delete topic")
		}
	}

	if err := s.Projects.Delete(r.Context(), id); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to delete project", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
