package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/broker"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomDisplayName mints the fresh 10-char alphanumeric topic display
// name spec.md §4.10 requires at signup.
func randomDisplayName() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i, c := range b {
		b[i] = alphanumeric[int(c)%len(alphanumeric)]
	}
	return string(b)
}

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	Token  string `json:"token"`
	Tenant tenantView `json:"tenant"`
}

type tenantView struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// Signup handles POST /auth/signup: atomically creates a tenant, its
// default project, and its default topic (best-effort broker-side),
// mirroring the ordering in spec.md §4.10.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}
	email := store.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "a valid email is required"))
		return
	}
	if len(req.Password) == 0 {
		writeAppErr(w, r, apperr.New(apperr.KindValidation, "a password is required"))
		return
	}

	passwordHash, err := auth.HashSecret(req.Password)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to hash password", err))
		return
	}

	ctx := r.Context()
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to begin signup transaction", err))
		return
	}
	defer tx.Rollback(ctx)

	tenant, err := s.Tenants.CreateTx(ctx, tx, email, passwordHash)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindConflict, "email already in use", err))
		return
	}

	project, err := s.Projects.CreateTx(ctx, tx, tenant.ID, "default", true)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to create default project", err))
		return
	}

	brokerName := broker.ProjectTopicName(project.ID.String())
	if err := s.Broker.CreateTopic(ctx, brokerName); err != nil {
		// Best-effort: broker-side failure does not abort signup. The
		// gateway persists the intended broker topic name regardless.
		log.Ctx(ctx).Warn().Err(err).Str("event", "kafka_topic_create_failed").Str("broker_name", brokerName).Msg("failed to create default topic")
	}

	if _, err := s.Topics.CreateTx(ctx, tx, project.ID, randomDisplayName(), brokerName); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to create default topic row", err))
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to commit signup", err))
		return
	}

	token, err := auth.Mint(s.Config.JWTSecret, tenant.ID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to mint token", err))
		return
	}

	log.Ctx(ctx).Info().Str("event", "signup").Str("tenant_id", tenant.ID.String()).Msg("tenant signed up")
	writeJSON(w, http.StatusCreated, authResp{Token: token, Tenant: tenantView{ID: tenant.ID.String(), Email: tenant.Email, Active: tenant.Active}})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}

	ctx := r.Context()
	tenant, err := s.Tenants.GetByEmail(ctx, store.NormalizeEmail(req.Email))
	if err != nil || !tenant.Active || !auth.VerifySecret(req.Password, tenant.PasswordHash) {
		writeAppErr(w, r, apperr.New(apperr.KindUnauthorized, "invalid email or password"))
		return
	}

	token, err := auth.Mint(s.Config.JWTSecret, tenant.ID)
	if err != nil {
		writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to mint token", err))
		return
	}

	log.Ctx(ctx).Info().Str("event", "login").Str("tenant_id", tenant.ID.String()).Msg("tenant logged in")
	writeJSON(w, http.StatusOK, authResp{Token: token, Tenant: tenantView{ID: tenant.ID.String(), Email: tenant.Email, Active: tenant.Active}})
}

// Me handles GET/PATCH/DELETE /auth/me.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeAppErr(w, r, apperr.New(apperr.KindUnauthorized, "missing identity"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		tenant, err := s.Tenants.GetByID(r.Context(), identity.TenantID)
		if err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindNotFound, "tenant not found", err))
			return
		}
		writeJSON(w, http.StatusOK, tenantView{ID: tenant.ID.String(), Email: tenant.Email, Active: tenant.Active})

	case http.MethodPatch:
		var req struct {
			Email    *string `json:"email"`
			Password *string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
			return
		}
		tenant, err := s.Tenants.GetByID(r.Context(), identity.TenantID)
		if err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindNotFound, "tenant not found", err))
			return
		}
		email := tenant.Email
		if req.Email != nil {
			email = store.NormalizeEmail(*req.Email)
		}
		passwordHash := tenant.PasswordHash
		if req.Password != nil {
			h, err := auth.HashSecret(*req.Password)
			if err != nil {
				writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to hash password", err))
				return
			}
			passwordHash = h
		}
		if err := s.Tenants.UpdateCredentials(r.Context(), tenant.ID, email, passwordHash); err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to update credentials", err))
			return
		}
		writeJSON(w, http.StatusOK, tenantView{ID: tenant.ID.String(), Email: email, Active: tenant.Active})

	case http.MethodDelete:
		// Soft-delete: best-effort broker topic teardown per project, then
		// flip active=false. Does not cascade rows, per spec.md §4.10.
		projects, err := s.Projects.ListByTenant(r.Context(), identity.TenantID)
		if err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to list projects for teardown", err))
			return
		}
		for _, p := range projects {
			topics, err := s.Topics.ListByProject(r.Context(), p.ID)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Str("project_id", p.ID.String()).Msg("failed to list topics for teardown")
				continue
			}
			for _, t := range topics {
				if err := s.Broker.DeleteTopic(r.Context(), t.BrokerName); err != nil {
					log.Ctx(r.Context()).Warn().Err(err).Str("event", "kafka_topic_delete_failed").Str("broker_name", t.BrokerName).Msg("failed to delete topic")
				}
			}
		}
		if err := s.Tenants.Deactivate(r.Context(), identity.TenantID); err != nil {
			writeAppErr(w, r, apperr.Wrap(apperr.KindInternal, "failed to deactivate tenant", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
