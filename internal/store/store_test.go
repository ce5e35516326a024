package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gmslzr/kafka-gateway/internal/store"
	"github.com/gmslzr/kafka-gateway/internal/testutil"
)

func TestTenantRepoCreateAndLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	repo := store.NewTenantRepo(pool)

	email := store.NormalizeEmail("  Store-Repo@Example.com ")
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	tenant, err := repo.CreateTx(ctx, tx, email, "hashed-password")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	byEmail, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, byEmail.ID)
	require.True(t, byEmail.Active)

	byID, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, email, byID.Email)

	require.NoError(t, repo.Deactivate(ctx, tenant.ID))
	after, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	require.False(t, after.Active)

	// Deactivating an already-inactive tenant must stay a no-op, not an error.
	require.NoError(t, repo.Deactivate(ctx, tenant.ID))
}

func TestTenantRepoGetByIDNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()

	repo := store.NewTenantRepo(pool)
	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectRepoGetDefaultPicksTheDefaultProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	tenants := store.NewTenantRepo(pool)
	projects := store.NewProjectRepo(pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	tenant, err := tenants.CreateTx(ctx, tx, store.NormalizeEmail("default-project@example.com"), "hash")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	def, err := projects.Create(ctx, tenant.ID, "default", true)
	require.NoError(t, err)
	_, err = projects.Create(ctx, tenant.ID, "secondary", false)
	require.NoError(t, err)

	got, err := projects.GetDefault(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, def.ID, got.ID)

	all, err := projects.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestProjectRepoDeleteCascadesTopicsAndKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	tenants := store.NewTenantRepo(pool)
	projects := store.NewProjectRepo(pool)
	topics := store.NewTopicRepo(pool)
	keys := store.NewAPIKeyRepo(pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	tenant, err := tenants.CreateTx(ctx, tx, store.NormalizeEmail("cascade-delete@example.com"), "hash")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	project, err := projects.Create(ctx, tenant.ID, "to-delete", true)
	require.NoError(t, err)
	_, err = topics.Create(ctx, project.ID, "events", "broker_events")
	require.NoError(t, err)
	_, err = keys.Create(ctx, tenant.ID, project.ID, "to-delete-key", "hash", "cascade-delete-digest")
	require.NoError(t, err)

	require.NoError(t, projects.Delete(ctx, project.ID))

	_, err = projects.GetByID(ctx, project.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	remaining, err := topics.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)

	remainingKeys, err := keys.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Empty(t, remainingKeys)
}

func TestProjectRepoDeleteUnknownIDIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()

	projects := store.NewProjectRepo(pool)
	err := projects.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsageRepoForProjectReturnsZeroesWhenNoRowExists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	tenants := store.NewTenantRepo(pool)
	projects := store.NewProjectRepo(pool)
	usage := store.NewUsageRepo(pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	tenant, err := tenants.CreateTx(ctx, tx, store.NormalizeEmail("usage-zero@example.com"), "hash")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	project, err := projects.Create(ctx, tenant.ID, "default", true)
	require.NoError(t, err)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	m, err := usage.ForProject(ctx, tenant.ID, project.ID, today)
	require.NoError(t, err)
	require.Zero(t, m.MessagesIn)
	require.Zero(t, m.BytesIn)
}

func TestUsageRepoAggregateForTenantSumsAcrossProjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := testutil.OpenTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	tenants := store.NewTenantRepo(pool)
	projects := store.NewProjectRepo(pool)
	usage := store.NewUsageRepo(pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	tenant, err := tenants.CreateTx(ctx, tx, store.NormalizeEmail("usage-aggregate@example.com"), "hash")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	projectA, err := projects.Create(ctx, tenant.ID, "a", true)
	require.NoError(t, err)
	projectB, err := projects.Create(ctx, tenant.ID, "b", false)
	require.NoError(t, err)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err = pool.Exec(ctx, `
		INSERT INTO usage_counters (tenant_id, project_id, day, messages_in, bytes_in)
		VALUES ($1, $2, $3, $4, $5)
	`, tenant.ID, projectA.ID, today, 4, 40)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO usage_counters (tenant_id, project_id, day, messages_in, bytes_in)
		VALUES ($1, $2, $3, $4, $5)
	`, tenant.ID, projectB.ID, today, 6, 60)
	require.NoError(t, err)

	m, err := usage.AggregateForTenant(ctx, tenant.ID, today)
	require.NoError(t, err)
	require.EqualValues(t, 10, m.MessagesIn)
	require.EqualValues(t, 100, m.BytesIn)
}
