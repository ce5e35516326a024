package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// TenantRepo persists and loads Tenant rows.
type TenantRepo struct {
	DB *pgxpool.Pool
}

func NewTenantRepo(db *pgxpool.Pool) *TenantRepo { return &TenantRepo{DB: db} }

// NormalizeEmail trims and case-folds an email the same way on every path
// that compares or stores one, matching the original's signup normalization.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateTx inserts a tenant within an existing transaction, returning the
// created row with its server-assigned timestamp.
func (r *TenantRepo) CreateTx(ctx context.Context, tx pgx.Tx, email, passwordHash string) (*Tenant, error) {
	t := &Tenant{ID: uuid.New(), Email: email, PasswordHash: passwordHash, Active: true}
	err := tx.QueryRow(ctx, `
		INSERT INTO tenants (id, email, password_hash, active)
		VALUES ($1, $2, $3, true)
		RETURNING created_at
	`, t.ID, t.Email, t.PasswordHash).Scan(&t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TenantRepo) GetByEmail(ctx context.Context, email string) (*Tenant, error) {
	return r.scanRow(r.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, active
		FROM tenants WHERE email = $1
	`, email))
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.scanRow(r.DB.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, active
		FROM tenants WHERE id = $1
	`, id))
}

func (r *TenantRepo) scanRow(row pgx.Row) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.Email, &t.PasswordHash, &t.CreatedAt, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateCredentials updates email and/or password hash for self-service
// profile edits; pass the existing value for a field left unchanged.
func (r *TenantRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE tenants SET email = $2, password_hash = $3 WHERE id = $1
	`, id, email, passwordHash)
	return err
}

// Deactivate flips the active flag. Monotonic: does not error if already
// inactive, matching the original's idempotent soft-delete.
func (r *TenantRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `UPDATE tenants SET active = false WHERE id = $1`, id)
	return err
}

// Ping is used by the healthcheck handler.
func (r *TenantRepo) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.DB.Ping(pingCtx)
}
