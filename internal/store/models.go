// Package store holds the gateway's relational entities and the
// pgx-backed repositories that load and persist them.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the authenticating principal (called "user" in the original
// system). Soft-deleted via Active, never physically removed by the core.
type Tenant struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	Active       bool
}

// Project groups a tenant's topics, keys, and usage counters. Exactly one
// default project is created atomically with the tenant; the constraint is
// not enforced past creation time.
type Project struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
	IsDefault bool
}

// Topic maps a project to a single broker topic. BrokerName is globally
// unique; Name is the short display form tenants publish/stream against.
type Topic struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Name       string
	BrokerName string
	CreatedAt  time.Time
}

// APIKey is an opaque bearer-alternative credential scoped to one project.
// SecretHash is the slow bcrypt verifier; LookupDigest is the fast SHA-256
// index used for O(1) candidate lookup. LookupDigest is nullable to model
// legacy rows created before the digest column existed.
type APIKey struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ProjectID    uuid.UUID
	Name         string
	SecretHash   string
	LookupDigest *string
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// UsageCounter is the per-tenant-per-project-per-day accounting row.
type UsageCounter struct {
	ID           int64
	TenantID     uuid.UUID
	ProjectID    uuid.UUID
	Day          time.Time
	MessagesIn   int64
	MessagesOut  int64
	BytesIn      int64
	BytesOut     int64
}

// GlobalUsageCounter is the cluster-wide inbound-only panic-brake row.
type GlobalUsageCounter struct {
	ID         int64
	Day        time.Time
	MessagesIn int64
	BytesIn    int64
}
