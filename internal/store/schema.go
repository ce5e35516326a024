package store

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

// Migrate applies the embedded schema. It is idempotent (every statement is
// a `CREATE ... IF NOT EXISTS`), so it is safe to call on every startup
// instead of wiring a dedicated migration runner for this scope.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
