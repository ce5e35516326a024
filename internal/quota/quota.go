// Package quota implements the transactional check-and-increment of
// per-(tenant,project)-per-day and cluster-wide-per-day usage counters.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
)

// Free-tier per-(tenant,project) limits and cluster-wide panic-brake
// limits, matching original_source/app/quota_service.py exactly.
const (
	FreeTierMessagesLimit = 10_000
	FreeTierBytesLimit    = 100 * 1024 * 1024
	MaxMessagesIn         = 200_000
	MaxBytesIn            = 2_000_000_000
)

// lockNotAvailable is Postgres SQLSTATE 55P03, returned by SELECT ... FOR
// UPDATE NOWAIT when the row is already locked by another transaction.
const lockNotAvailable = "55P03"

const (
	maxRetries       = 3
	initialRetryWait = 10 * time.Millisecond
)

// Direction is which side of a counter a call is accounting for.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Engine runs check-and-increment operations against the shared pool.
type Engine struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Engine { return &Engine{DB: db} }

// CheckAndIncrement performs the full quota engine sequence described in
// spec.md §4.4 in a single transaction, retrying on lock contention with
// exponential backoff. Returns an *apperr.Error with KindQuotaBreach on
// limit breach, or KindTransient if retries are exhausted.
func (e *Engine) CheckAndIncrement(ctx context.Context, tenantID, projectID uuid.UUID, dir Direction, messageCount, byteCount int64) error {
	wait := initialRetryWait

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := e.attempt(ctx, tenantID, projectID, dir, messageCount, byteCount)
		if err == nil {
			return nil
		}
		if isLockUnavailable(err) {
			if attempt == maxRetries {
				return apperr.Wrap(apperr.KindTransient, "quota lock unavailable after retries", err)
			}
			log.Warn().
				Str("tenant_id", tenantID.String()).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("quota row lock unavailable, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return apperr.Wrap(apperr.KindTransient, "context cancelled during quota retry", ctx.Err())
			}
			wait *= 2
			continue
		}
		return err
	}
	return apperr.New(apperr.KindTransient, "quota lock unavailable after retries")
}

func (e *Engine) attempt(ctx context.Context, tenantID, projectID uuid.UUID, dir Direction, messageCount, byteCount int64) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if dir == DirectionIn {
		globalMessages, globalBytes, err := lockOrCreateGlobal(ctx, tx, today)
		if err != nil {
			return err
		}
		if globalMessages+messageCount > MaxMessagesIn {
			return apperr.New(apperr.KindQuotaBreach, "Cluster-wide daily message limit exceeded. Please try again later.")
		}
		if globalBytes+byteCount > MaxBytesIn {
			return apperr.New(apperr.KindQuotaBreach, "Cluster-wide daily bytes limit exceeded. Please try again later.")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE global_usage_counters SET messages_in = messages_in + $2, bytes_in = bytes_in + $3
			WHERE day = $1
		`, today, messageCount, byteCount); err != nil {
			return err
		}
	}

	msgsIn, msgsOut, bytesIn, bytesOut, err := lockOrCreateUsage(ctx, tx, tenantID, projectID, today)
	if err != nil {
		return err
	}

	if dir == DirectionIn {
		if msgsIn+messageCount > FreeTierMessagesLimit {
			return apperr.New(apperr.KindQuotaBreach, "Free tier limit exceeded: daily message limit reached")
		}
		if bytesIn+byteCount > FreeTierBytesLimit {
			return apperr.New(apperr.KindQuotaBreach, "Free tier limit exceeded: daily bytes limit reached")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE usage_counters SET messages_in = messages_in + $4, bytes_in = bytes_in + $5
			WHERE tenant_id = $1 AND project_id = $2 AND day = $3
		`, tenantID, projectID, today, messageCount, byteCount); err != nil {
			return err
		}
	} else {
		if msgsOut+messageCount > FreeTierMessagesLimit {
			return apperr.New(apperr.KindQuotaBreach, "Free tier limit exceeded: daily message limit reached")
		}
		if bytesOut+byteCount > FreeTierBytesLimit {
			return apperr.New(apperr.KindQuotaBreach, "Free tier limit exceeded: daily bytes limit reached")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE usage_counters SET messages_out = messages_out + $4, bytes_out = bytes_out + $5
			WHERE tenant_id = $1 AND project_id = $2 AND day = $3
		`, tenantID, projectID, today, messageCount, byteCount); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// lockOrCreateGlobal locks today's row, inserting it first if absent, and
// returns its current counters. The insert races with concurrent callers;
// the unique constraint on `day` lets exactly one insert win, and every
// caller then re-queries under the lock.
func lockOrCreateGlobal(ctx context.Context, tx pgx.Tx, today time.Time) (messagesIn, bytesIn int64, err error) {
	row := tx.QueryRow(ctx, `
		SELECT messages_in, bytes_in FROM global_usage_counters WHERE day = $1 FOR UPDATE NOWAIT
	`, today)
	err = row.Scan(&messagesIn, &bytesIn)
	if err == nil {
		return messagesIn, bytesIn, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO global_usage_counters (day, messages_in, bytes_in) VALUES ($1, 0, 0)
		ON CONFLICT (day) DO NOTHING
	`, today); err != nil {
		return 0, 0, err
	}

	row = tx.QueryRow(ctx, `
		SELECT messages_in, bytes_in FROM global_usage_counters WHERE day = $1 FOR UPDATE NOWAIT
	`, today)
	err = row.Scan(&messagesIn, &bytesIn)
	return messagesIn, bytesIn, err
}

func lockOrCreateUsage(ctx context.Context, tx pgx.Tx, tenantID, projectID uuid.UUID, today time.Time) (msgsIn, msgsOut, bytesIn, bytesOut int64, err error) {
	row := tx.QueryRow(ctx, `
		SELECT messages_in, messages_out, bytes_in, bytes_out FROM usage_counters
		WHERE tenant_id = $1 AND project_id = $2 AND day = $3 FOR UPDATE NOWAIT
	`, tenantID, projectID, today)
	err = row.Scan(&msgsIn, &msgsOut, &bytesIn, &bytesOut)
	if err == nil {
		return msgsIn, msgsOut, bytesIn, bytesOut, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, 0, 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO usage_counters (tenant_id, project_id, day, messages_in, messages_out, bytes_in, bytes_out)
		VALUES ($1, $2, $3, 0, 0, 0, 0)
		ON CONFLICT (tenant_id, project_id, day) DO NOTHING
	`, tenantID, projectID, today); err != nil {
		return 0, 0, 0, 0, err
	}

	row = tx.QueryRow(ctx, `
		SELECT messages_in, messages_out, bytes_in, bytes_out FROM usage_counters
		WHERE tenant_id = $1 AND project_id = $2 AND day = $3 FOR UPDATE NOWAIT
	`, tenantID, projectID, today)
	err = row.Scan(&msgsIn, &msgsOut, &bytesIn, &bytesOut)
	return msgsIn, msgsOut, bytesIn, bytesOut, err
}

func isLockUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == lockNotAvailable
	}
	return false
}
