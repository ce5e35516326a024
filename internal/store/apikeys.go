package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type APIKeyRepo struct {
	DB *pgxpool.Pool
}

func NewAPIKeyRepo(db *pgxpool.Pool) *APIKeyRepo { return &APIKeyRepo{DB: db} }

func (r *APIKeyRepo) Create(ctx context.Context, tenantID, projectID uuid.UUID, name, secretHash, lookupDigest string) (*APIKey, error) {
	k := &APIKey{
		ID: uuid.New(), TenantID: tenantID, ProjectID: projectID, Name: name,
		SecretHash: secretHash, LookupDigest: &lookupDigest,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO api_keys (id, tenant_id, project_id, name, secret_hash, lookup_digest)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, k.ID, k.TenantID, k.ProjectID, k.Name, k.SecretHash, k.LookupDigest).Scan(&k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (r *APIKeyRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*APIKey, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tenant_id, project_id, name, secret_hash, lookup_digest, created_at, last_used_at
		FROM api_keys WHERE tenant_id = $1 ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *APIKeyRepo) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByDigest is the O(1) happy path: an indexed lookup_digest match
// against active tenants only.
func (r *APIKeyRepo) FindByDigest(ctx context.Context, digest string) (*APIKey, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT k.id, k.tenant_id, k.project_id, k.name, k.secret_hash, k.lookup_digest, k.created_at, k.last_used_at
		FROM api_keys k JOIN tenants t ON t.id = k.tenant_id
		WHERE k.lookup_digest = $1 AND t.active = true
	`, digest)
	return scanAPIKeyRow(row)
}

// ListLegacyWithoutDigest returns every row lacking a lookup digest, for
// the O(n) legacy fallback scan. This branch is a migration artifact: once
// every row has been backfilled it is dead code.
func (r *APIKeyRepo) ListLegacyWithoutDigest(ctx context.Context) ([]*APIKey, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT k.id, k.tenant_id, k.project_id, k.name, k.secret_hash, k.lookup_digest, k.created_at, k.last_used_at
		FROM api_keys k JOIN tenants t ON t.id = k.tenant_id
		WHERE k.lookup_digest IS NULL AND t.active = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// BackfillDigest sets the lookup digest on a legacy row after a successful
// slow-verify, so the next request for the same key takes the fast path.
func (r *APIKeyRepo) BackfillDigest(ctx context.Context, id uuid.UUID, digest string) error {
	_, err := r.DB.Exec(ctx, `UPDATE api_keys SET lookup_digest = $2 WHERE id = $1`, id, digest)
	return err
}

// TouchLastUsed updates last_used_at on every successful verification,
// whether reached via the fast digest path or the legacy scan path.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(rs rowScanner) (*APIKey, error) {
	return scanAPIKeyRow(rs)
}

func scanAPIKeyRow(rs rowScanner) (*APIKey, error) {
	k := &APIKey{}
	err := rs.Scan(&k.ID, &k.TenantID, &k.ProjectID, &k.Name, &k.SecretHash, &k.LookupDigest, &k.CreatedAt, &k.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}
