package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TopicRepo struct {
	DB *pgxpool.Pool
}

func NewTopicRepo(db *pgxpool.Pool) *TopicRepo { return &TopicRepo{DB: db} }

func (r *TopicRepo) CreateTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, name, brokerName string) (*Topic, error) {
	t := &Topic{ID: uuid.New(), ProjectID: projectID, Name: name, BrokerName: brokerName}
	err := tx.QueryRow(ctx, `
		INSERT INTO topics (id, project_id, name, broker_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.ID, t.ProjectID, t.Name, t.BrokerName).Scan(&t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TopicRepo) Create(ctx context.Context, projectID uuid.UUID, name, brokerName string) (*Topic, error) {
	t := &Topic{ID: uuid.New(), ProjectID: projectID, Name: name, BrokerName: brokerName}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO topics (id, project_id, name, broker_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.ID, t.ProjectID, t.Name, t.BrokerName).Scan(&t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByDisplayName resolves a topic by its short display name within a
// project, falling back to broker name match, as the publish/stream paths
// require (display name first, then broker name).
func (r *TopicRepo) GetByDisplayName(ctx context.Context, projectID uuid.UUID, name string) (*Topic, error) {
	t, err := r.scan(r.DB.QueryRow(ctx, `
		SELECT id, project_id, name, broker_name, created_at
		FROM topics WHERE project_id = $1 AND name = $2
	`, projectID, name))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.scan(r.DB.QueryRow(ctx, `
		SELECT id, project_id, name, broker_name, created_at
		FROM topics WHERE project_id = $1 AND broker_name = $2
	`, projectID, name))
}

func (r *TopicRepo) GetByID(ctx context.Context, id uuid.UUID) (*Topic, error) {
	return r.scan(r.DB.QueryRow(ctx, `
		SELECT id, project_id, name, broker_name, created_at FROM topics WHERE id = $1
	`, id))
}

func (r *TopicRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Topic, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, project_id, name, broker_name, created_at
		FROM topics WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Topic
	for rows.Next() {
		t := &Topic{}
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.BrokerName, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByTenant lists every topic across every project owned by a tenant,
// for the bearer "all tenant topics" listing variant.
func (r *TopicRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Topic, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT t.id, t.project_id, t.name, t.broker_name, t.created_at
		FROM topics t JOIN projects p ON p.id = t.project_id
		WHERE p.tenant_id = $1 ORDER BY t.created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Topic
	for rows.Next() {
		t := &Topic{}
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.BrokerName, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TopicRepo) scan(row pgx.Row) (*Topic, error) {
	t := &Topic{}
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.BrokerName, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
