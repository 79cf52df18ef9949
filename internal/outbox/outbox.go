// Package outbox implements the vector-sync outbox (SPEC_FULL.md
// section 4.10): an in-memory FIFO, a durable graph-backed store with
// atomic claim-by-worker semantics, and a coalescing front that bounds
// memory under burst load and spills the oldest entries to the durable
// store. Grounded on vector_sync_outbox.py (VectorSyncOutbox,
// DurableOutboxDrainer, CoalescingOutbox, RedisOutboxStore's
// claim-pending Lua script, reimplemented here as a single Cypher
// statement per section 4.10) and graph_builder.py's
// PeriodicVectorDrainer.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
)

// VectorSyncEvent describes a pending vector-index reconciliation: a
// collection whose embeddings must be synced and the node ids pruned
// out of the graph since the last sync, mirroring
// vector_sync_outbox.py's VectorSyncEvent dataclass.
type VectorSyncEvent struct {
	EventID    string
	Collection string
	PrunedIDs  []string
	RetryCount int
	EnqueuedAt time.Time
}

// NewVectorSyncEvent builds an event with a fresh id.
func NewVectorSyncEvent(collection string, prunedIDs []string) VectorSyncEvent {
	return VectorSyncEvent{
		EventID:    uuid.NewString(),
		Collection: collection,
		PrunedIDs:  append([]string(nil), prunedIDs...),
	}
}

// Outbox is the minimal surface DrainVectorOutbox needs from any of the
// three implementations.
type Outbox interface {
	Enqueue(event VectorSyncEvent)
	PendingCount() int
}

// MemoryOutbox is a mutex-guarded FIFO queue of pending vector-sync
// events, used as the fallback store when no durable outbox is
// configured (development) and as the final drain stage in production.
type MemoryOutbox struct {
	mu     sync.Mutex
	events []VectorSyncEvent
}

var _ Outbox = (*MemoryOutbox)(nil)

// NewMemoryOutbox returns an empty in-memory outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Enqueue appends event to the tail of the queue.
func (o *MemoryOutbox) Enqueue(event VectorSyncEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

// PendingCount returns the number of queued events.
func (o *MemoryOutbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Drain removes and returns every queued event, oldest first.
func (o *MemoryOutbox) Drain() []VectorSyncEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	drained := o.events
	o.events = nil
	return drained
}
