package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProjectRepo struct {
	DB *pgxpool.Pool
}

func NewProjectRepo(db *pgxpool.Pool) *ProjectRepo { return &ProjectRepo{DB: db} }

func (r *ProjectRepo) CreateTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, name string, isDefault bool) (*Project, error) {
	p := &Project{ID: uuid.New(), TenantID: tenantID, Name: name, IsDefault: isDefault}
	err := tx.QueryRow(ctx, `
		INSERT INTO projects (id, tenant_id, name, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.TenantID, p.Name, p.IsDefault).Scan(&p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepo) Create(ctx context.Context, tenantID uuid.UUID, name string, isDefault bool) (*Project, error) {
	p := &Project{ID: uuid.New(), TenantID: tenantID, Name: name, IsDefault: isDefault}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO projects (id, tenant_id, name, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.TenantID, p.Name, p.IsDefault).Scan(&p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	p := &Project{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, is_default FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetDefault returns the tenant's default project, created atomically at
// signup time.
func (r *ProjectRepo) GetDefault(ctx context.Context, tenantID uuid.UUID) (*Project, error) {
	p := &Project{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, is_default
		FROM projects WHERE tenant_id = $1 AND is_default = true
		ORDER BY created_at ASC LIMIT 1
	`, tenantID).Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Project, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tenant_id, name, created_at, is_default
		FROM projects WHERE tenant_id = $1 ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.CreatedAt, &p.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.DB.Exec(ctx, `UPDATE projects SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete cascades to the project's topics, api keys, and usage counters, as
// spec'd: relational cascade on project delete.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM usage_counters WHERE project_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM api_keys WHERE project_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM topics WHERE project_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}
