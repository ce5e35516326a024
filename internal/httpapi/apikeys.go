package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
)

// newAPIKeySecret mints a random opaque bearer-alternative credential; it
// is returned to the caller exactly once and never persisted in plaintext.
func newAPIKeySecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ak_" + base64.RawURLEncoding.EncodeToString(b), nil
}

type apiKeyView struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	Name       string  `json:"name"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

// ListAPIKeys handles GET /api-keys.
func (s *Server) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	keys, err := s.Keys.ListByTenant(r.Context(), identity.TenantID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to list api keys", err))
		return
	}

	views := make([]apiKeyView, 0, len(keys))
	for _, k := range keys {
		v := apiKeyView{ID: k.ID.String(), ProjectID: k.ProjectID.String(), Name: k.Name, CreatedAt: k.CreatedAt.UTC().Format(rfc3339)}
		if k.LastUsedAt != nil {
			s := k.LastUsedAt.UTC().Format(rfc3339)
			v.LastUsedAt = &s
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

type createAPIKeyReq struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type createAPIKeyResp struct {
	apiKeyView
	Secret string `json:"secret"`
}

// CreateAPIKey handles POST /api-keys: the plaintext secret is returned
// exactly once in this response.
func (s *Server) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var req createAPIKeyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "project_id must be a uuid"))
		return
	}
	project, err := s.Projects.GetByID(r.Context(), projectID)
	if err != nil || project.TenantID != identity.TenantID {
		writeAppErr(w, r, apperr.New(apperr.KindNotFound, "project not found"))
		return
	}
	if req.Name == "" {
		req.Name = "default"
	}

	secret, err := newAPIKeySecret()
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to generate api key secret", err))
		return
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to hash api key secret", err))
		return
	}
	digest := auth.LookupDigest(secret)

	key, err := s.Keys.Create(r.Context(), identity.TenantID, projectID, req.Name, hash, digest)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to create api key", err))
		return
	}

	writeJSON(w, http.StatusCreated, createAPIKeyResp{
		apiKeyView: apiKeyView{ID: key.ID.String(), ProjectID: key.ProjectID.String(), Name: key.Name, CreatedAt: key.CreatedAt.UTC().Format(rfc3339)},
		Secret:     secret,
	})
}

// DeleteAPIKey handles DELETE /api-keys/{id}.
func (s *Server) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "id must be a uuid"))
		return
	}
	if err := s.Keys.Delete(r.Context(), id, identity.TenantID); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindNotFound, "api key not found", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
