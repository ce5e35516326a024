// Package testutil provides test-only helpers shared across packages that
// need a live Postgres for integration-style tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmslzr/kafka-gateway/internal/broker"
	"github.com/gmslzr/kafka-gateway/internal/db"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

// OpenTestDB connects to TEST_DATABASE_URL and applies the schema,
// skipping the test if the variable isn't set.
func OpenTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := store.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return pool
}

// OpenTestBroker dials TEST_KAFKA_BOOTSTRAP_SERVERS and confirms it answers
// a metadata round-trip, skipping the test if the variable isn't set or the
// broker isn't reachable.
func OpenTestBroker(t *testing.T) *broker.Broker {
	t.Helper()

	addr := os.Getenv("TEST_KAFKA_BOOTSTRAP_SERVERS")
	if addr == "" {
		t.Skip("TEST_KAFKA_BOOTSTRAP_SERVERS not set, skipping integration test")
	}

	b, err := broker.Dial(addr)
	if err != nil {
		t.Fatalf("failed to dial test kafka broker: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.ListTopics(ctx); err != nil {
		t.Skipf("kafka broker at %s not reachable: %v", addr, err)
	}
	return b
}
