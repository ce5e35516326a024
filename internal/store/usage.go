package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepo struct {
	DB *pgxpool.Pool
}

func NewUsageRepo(db *pgxpool.Pool) *UsageRepo { return &UsageRepo{DB: db} }

// Metrics is the read-only shape returned by the usage endpoints; it is
// distinct from UsageCounter because it may be a cross-project aggregate
// with no single row behind it.
type Metrics struct {
	MessagesIn  int64
	MessagesOut int64
	BytesIn     int64
	BytesOut    int64
}

// AggregateForTenant sums today's counters across every project owned by
// the tenant. Does not lock: pure read path, as spec'd.
func (r *UsageRepo) AggregateForTenant(ctx context.Context, tenantID uuid.UUID, day time.Time) (Metrics, error) {
	var m Metrics
	err := r.DB.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(messages_in), 0), COALESCE(SUM(messages_out), 0),
			COALESCE(SUM(bytes_in), 0), COALESCE(SUM(bytes_out), 0)
		FROM usage_counters WHERE tenant_id = $1 AND day = $2
	`, tenantID, day).Scan(&m.MessagesIn, &m.MessagesOut, &m.BytesIn, &m.BytesOut)
	return m, err
}

// ForProject returns the specific (tenant, project, day) row, or all zeros
// if no accounting has happened yet for that day.
func (r *UsageRepo) ForProject(ctx context.Context, tenantID, projectID uuid.UUID, day time.Time) (Metrics, error) {
	var m Metrics
	err := r.DB.QueryRow(ctx, `
		SELECT messages_in, messages_out, bytes_in, bytes_out
		FROM usage_counters WHERE tenant_id = $1 AND project_id = $2 AND day = $3
	`, tenantID, projectID, day).Scan(&m.MessagesIn, &m.MessagesOut, &m.BytesIn, &m.BytesOut)
	if errors.Is(err, pgx.ErrNoRows) {
		return Metrics{}, nil // absent day/project => zeros, not an error
	}
	if err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// PerProjectBreakdown returns one row per project the tenant owns, with
// zero counters for projects that have no usage for the given day, for the
// /usage/projects endpoint.
type ProjectUsage struct {
	ProjectID   uuid.UUID
	ProjectName string
	Metrics     Metrics
}

func (r *UsageRepo) PerProjectBreakdown(ctx context.Context, tenantID uuid.UUID, day time.Time) ([]ProjectUsage, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name,
			COALESCE(u.messages_in, 0), COALESCE(u.messages_out, 0),
			COALESCE(u.bytes_in, 0), COALESCE(u.bytes_out, 0)
		FROM projects p
		LEFT JOIN usage_counters u ON u.project_id = p.id AND u.day = $2
		WHERE p.tenant_id = $1
		ORDER BY p.created_at ASC
	`, tenantID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectUsage
	for rows.Next() {
		var pu ProjectUsage
		if err := rows.Scan(&pu.ProjectID, &pu.ProjectName,
			&pu.Metrics.MessagesIn, &pu.Metrics.MessagesOut,
			&pu.Metrics.BytesIn, &pu.Metrics.BytesOut); err != nil {
			return nil, err
		}
		out = append(out, pu)
	}
	return out, rows.Err()
}
