package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/config"
	"github.com/gmslzr/kafka-gateway/internal/quota"
	"github.com/gmslzr/kafka-gateway/internal/ratelimit"
	"github.com/gmslzr/kafka-gateway/internal/registry"
	"github.com/gmslzr/kafka-gateway/internal/store"
	"github.com/gmslzr/kafka-gateway/internal/testutil"
)

const testJWTSecret = "test-jwt-secret-at-least-32-bytes-long!!"

// newTestServer wires a Server against a real, migrated Postgres database
// (skipping the test if TEST_DATABASE_URL isn't set) with a generous
// in-memory rate limiter. Broker is left nil: the handlers exercised by the
// tests in this package that need it construct their own via
// testutil.OpenTestBroker.
func newTestServer(t *testing.T) (*Server, *pgxpool.Pool) {
	t.Helper()
	pool := testutil.OpenTestDB(t)

	tenants := store.NewTenantRepo(pool)
	keys := store.NewAPIKeyRepo(pool)

	srv := &Server{
		Config: &config.Config{
			Env:               "test",
			JWTSecret:         testJWTSecret,
			AdminAPIKey:       "admin-secret",
			RateLimitRequests: 1000,
			RateLimitPeriod:   "minute",
		},
		DB:       pool,
		Tenants:  tenants,
		Projects: store.NewProjectRepo(pool),
		Topics:   store.NewTopicRepo(pool),
		Keys:     keys,
		Usage:    store.NewUsageRepo(pool),
		Resolver: auth.NewResolver(testJWTSecret, tenants, keys),
		Registry: registry.New(),
		Quota:    quota.New(pool),
		Limiter:  ratelimit.NewInMemory(ratelimit.Config{MaxRequests: 1000, Window: time.Minute, Burst: 1000}),
	}
	return srv, pool
}

type seededTenant struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	Token     string
}

// seedTenant inserts a tenant and its default project directly through the
// repositories, bypassing Signup (and its broker dependency) for tests that
// only need an authenticated principal already in place.
func seedTenant(ctx context.Context, t *testing.T, s *Server, email string) seededTenant {
	t.Helper()

	tx, err := s.DB.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	hash, err := auth.HashSecret("correct horse battery staple")
	require.NoError(t, err)

	tenant, err := s.Tenants.CreateTx(ctx, tx, store.NormalizeEmail(email), hash)
	require.NoError(t, err)

	project, err := s.Projects.CreateTx(ctx, tx, tenant.ID, "default", true)
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))

	token, err := auth.Mint(s.Config.JWTSecret, tenant.ID)
	require.NoError(t, err)

	return seededTenant{TenantID: tenant.ID, ProjectID: project.ID, Token: token}
}

// seedAPIKey creates a second project plus an API key scoped to it, and
// returns the plaintext secret the caller presents as "ApiKey <secret>".
func seedAPIKey(ctx context.Context, t *testing.T, s *Server, tenantID uuid.UUID, projectName string) (projectID uuid.UUID, secret string) {
	t.Helper()

	project, err := s.Projects.Create(ctx, tenantID, projectName, false)
	require.NoError(t, err)

	secret = "ak_test_" + uuid.New().String()
	hash, err := auth.HashSecret(secret)
	require.NoError(t, err)
	digest := auth.LookupDigest(secret)

	_, err = s.Keys.Create(ctx, tenantID, project.ID, "test-key", hash, digest)
	require.NoError(t, err)

	return project.ID, secret
}
