// Package registry tracks, per tenant, the set of currently active SSE
// streams for admission control and observability.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// MaxStreamsPerTenant bounds how many concurrent streams one tenant may
// hold open at once.
const MaxStreamsPerTenant = 3

// Descriptor identifies one active stream. ConnID is random, not derived
// from any persisted identifier — it exists only for the life of the
// stream.
type Descriptor struct {
	ConnID string
	Topic  string
}

// Registry is the process-wide tenant → active-stream-set map. A single
// mutex guards the whole map; no I/O is ever performed while holding it.
type Registry struct {
	mu    sync.Mutex
	byTenant map[uuid.UUID]map[string]Descriptor
}

func New() *Registry {
	return &Registry{byTenant: make(map[uuid.UUID]map[string]Descriptor)}
}

// Admit registers a new stream for tenant if under the per-tenant limit,
// returning a fresh connection id on success.
func (r *Registry) Admit(tenant uuid.UUID, topic string) (connID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byTenant[tenant]
	if len(set) >= MaxStreamsPerTenant {
		return "", false
	}
	id := newConnID()
	if set == nil {
		set = make(map[string]Descriptor)
		r.byTenant[tenant] = set
	}
	set[id] = Descriptor{ConnID: id, Topic: topic}
	return id, true
}

// Remove is idempotent: removing an unknown (tenant, connID) pair is a
// no-op. Pruning an empty set keeps the outer map from growing unbounded
// with stale tenant keys.
func (r *Registry) Remove(tenant uuid.UUID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byTenant[tenant]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byTenant, tenant)
	}
}

// Snapshot returns a deep copy of the current registry state, safe for the
// caller to range over without further locking.
func (r *Registry) Snapshot() map[uuid.UUID][]Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID][]Descriptor, len(r.byTenant))
	for tenant, set := range r.byTenant {
		descs := make([]Descriptor, 0, len(set))
		for _, d := range set {
			descs = append(descs, d)
		}
		out[tenant] = descs
	}
	return out
}

func newConnID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure indicates a broken host; nothing recoverable here
	}
	return hex.EncodeToString(b[:])
}
