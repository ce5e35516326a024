package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

// Identity is what the auth resolver produces: a tenant, and optionally a
// project scope when resolution went through an API key.
type Identity struct {
	TenantID  uuid.UUID
	ProjectID *uuid.UUID
	ViaAPIKey bool
}

// Resolver implements the dual-mode bearer-then-APIKey extraction
// strategy. It is constructed once at startup and threaded through the
// server, the way the teacher threads its *pgxpool.Pool.
type Resolver struct {
	JWTSecret string
	Tenants   *store.TenantRepo
	Keys      *store.APIKeyRepo
}

func NewResolver(secret string, tenants *store.TenantRepo, keys *store.APIKeyRepo) *Resolver {
	return &Resolver{JWTSecret: secret, Tenants: tenants, Keys: keys}
}

// Resolve extracts and validates whichever credential form is present in
// the Authorization header, bearer taking precedence over API key.
func (res *Resolver) Resolve(ctx context.Context, header string) (*Identity, error) {
	if bearer, ok := strings.CutPrefix(header, "Bearer "); ok {
		return res.resolveBearer(ctx, bearer)
	}
	if secret, ok := strings.CutPrefix(header, "ApiKey "); ok {
		return res.resolveAPIKey(ctx, secret)
	}
	return nil, apperr.New(apperr.KindUnauthorized, "missing or unrecognized authorization header")
}

func (res *Resolver) resolveBearer(ctx context.Context, token string) (*Identity, error) {
	tenantID, err := Verify(res.JWTSecret, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "invalid bearer token", err)
	}
	tenant, err := res.Tenants.GetByID(ctx, tenantID)
	if err != nil || !tenant.Active {
		return nil, apperr.New(apperr.KindUnauthorized, "unknown or inactive tenant")
	}
	return &Identity{TenantID: tenant.ID}, nil
}

func (res *Resolver) resolveAPIKey(ctx context.Context, secret string) (*Identity, error) {
	digest := LookupDigest(secret)

	if key, err := res.Keys.FindByDigest(ctx, digest); err == nil {
		if VerifySecret(secret, key.SecretHash) {
			if err := res.Keys.TouchLastUsed(ctx, key.ID); err != nil {
				log.Warn().Err(err).Str("api_key_id", key.ID.String()).Msg("failed to touch api key last_used_at")
			}
			return &Identity{TenantID: key.TenantID, ProjectID: &key.ProjectID, ViaAPIKey: true}, nil
		}
		return nil, apperr.New(apperr.KindUnauthorized, "invalid api key")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindInternal, "api key digest lookup failed", err)
	}

	// Legacy fallback: rows created before the digest column existed. O(n)
	// in legacy keys only; removable once all rows are backfilled.
	legacy, err := res.Keys.ListLegacyWithoutDigest(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "legacy api key scan failed", err)
	}
	for _, key := range legacy {
		if !VerifySecret(secret, key.SecretHash) {
			continue
		}
		if err := res.Keys.BackfillDigest(ctx, key.ID, digest); err != nil {
			log.Warn().Err(err).Str("api_key_id", key.ID.String()).Msg("failed to backfill api key lookup digest")
		}
		if err := res.Keys.TouchLastUsed(ctx, key.ID); err != nil {
			log.Warn().Err(err).Str("api_key_id", key.ID.String()).Msg("failed to touch api key last_used_at")
		}
		return &Identity{TenantID: key.TenantID, ProjectID: &key.ProjectID, ViaAPIKey: true}, nil
	}

	return nil, apperr.New(apperr.KindUnauthorized, "invalid api key")
}

const CtxIdentity ctxKey = "identity"

// Middleware resolves the caller's identity and requires it to succeed;
// used for routes where auth is mandatory regardless of scheme. Routes
// that accept "bearer or key" use this; admin uses a separate header check.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := res.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeIdentityErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), CtxIdentity, identity)
		ctx = context.WithValue(ctx, CtxTenantID, identity.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireBearer rejects API-key-authenticated requests; some endpoints
// (project creation, /usage/projects) are bearer-only per spec.md §6/§4.10.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.ViaAPIKey {
			writeIdentityErr(w, apperr.New(apperr.KindForbidden, "endpoint not usable under api key auth"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext extracts the resolved Identity, nil if absent.
func IdentityFromContext(ctx context.Context) *Identity {
	if v := ctx.Value(CtxIdentity); v != nil {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}

func writeIdentityErr(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.KindInternal, "auth resolution failed", err)
	}
	http.Error(w, ae.Reason, ae.HTTPStatus())
}
