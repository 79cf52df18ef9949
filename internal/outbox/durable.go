package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/infrastructure/resilience"
)

// outboxEventLabel is the internal node label DurableOutbox writes,
// exempt from tenant scoping per internal/tenant/guard's
// internalNodeLabels allowlist (SPEC_FULL.md section 4.10).
const outboxEventLabel = "OutboxEvent"

// writeEventQuery persists a new pending event. OutboxEvent nodes carry
// no tenant_id: the vector store they reconcile against is itself
// process-wide, not tenant-scoped.
const writeEventQuery = `
CREATE (e:OutboxEvent {
	event_id: $event_id,
	collection: $collection,
	pruned_ids: $pruned_ids,
	retry_count: $retry_count,
	enqueued_at: $enqueued_at,
	claimed_by: null,
	claim_expires_at: null
})`

// claimPendingQuery atomically selects up to $limit events that are
// either unclaimed or whose claim has expired, and stamps them as
// claimed by workerID with a fresh lease — all within one Cypher
// statement so no two drainers can claim the same event (no SCAN, per
// RedisOutboxStore._CLAIM_LUA_SCRIPT's original intent).
const claimPendingQuery = `
MATCH (e:OutboxEvent)
WHERE e.claimed_by IS NULL OR e.claim_expires_at < $now
WITH e ORDER BY e.enqueued_at ASC LIMIT $limit
SET e.claimed_by = $worker_id, e.claim_expires_at = $lease_expiry
RETURN e.event_id AS event_id, e.collection AS collection,
       e.pruned_ids AS pruned_ids, e.retry_count AS retry_count,
       e.enqueued_at AS enqueued_at`

const deleteEventQuery = `MATCH (e:OutboxEvent {event_id: $event_id}) DELETE e`

const updateRetryCountQuery = `MATCH (e:OutboxEvent {event_id: $event_id}) SET e.retry_count = $retry_count, e.claimed_by = null`

const pendingCountQuery = `MATCH (e:OutboxEvent) RETURN count(e) AS pending`

// DurableOutbox persists vector-sync events as internal graph nodes so
// a process restart does not lose pending work, grounded on
// vector_sync_outbox.py's DurableOutboxDrainer + RedisOutboxStore's
// atomic claim semantics, reimplemented here against the same Neo4j
// store rather than a separate Redis deployment.
type DurableOutbox struct {
	driver  neo4j.DriverWithContext
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

// NewDurableOutbox wraps an existing Neo4j driver connection.
func NewDurableOutbox(driver neo4j.DriverWithContext, logger *logging.Logger) *DurableOutbox {
	return &DurableOutbox{
		driver:  driver,
		breaker: resilience.New(resilience.DefaultServiceCBConfig(logger)),
		logger:  logger,
	}
}

// WriteEvent persists event durably. Enqueue (the Outbox interface
// method) is fire-and-forget from the caller's perspective; callers
// that need the write error should call WriteEvent directly.
func (o *DurableOutbox) WriteEvent(ctx context.Context, event VectorSyncEvent) error {
	if event.EventID == "" {
		event = NewVectorSyncEvent(event.Collection, event.PrunedIDs)
	}
	return o.breaker.Execute(ctx, func() error {
		session := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, writeEventQuery, map[string]any{
				"event_id":    event.EventID,
				"collection":  event.Collection,
				"pruned_ids":  event.PrunedIDs,
				"retry_count": event.RetryCount,
				"enqueued_at": event.EnqueuedAt.UTC().Format(time.RFC3339Nano),
			})
			return nil, err
		})
		return err
	})
}

// Enqueue implements Outbox by writing event durably and logging (but
// not surfacing) any failure, matching how post-commit side effects are
// fire-and-forget with respect to the caller's hot path.
func (o *DurableOutbox) Enqueue(event VectorSyncEvent) {
	if err := o.WriteEvent(context.Background(), event); err != nil {
		o.logger.Error(context.Background(), "durable outbox write failed", err, map[string]interface{}{"collection": event.Collection})
	}
}

// PendingCount reports the number of events not yet claimed-and-deleted.
// Best-effort: a query failure logs and reports zero rather than
// propagating, since callers use this only for metrics/observability.
func (o *DurableOutbox) PendingCount() int {
	ctx := context.Background()
	var count int64
	err := o.breaker.Execute(ctx, func() error {
		session := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)
		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, pendingCountQuery, nil)
			if err != nil {
				return nil, err
			}
			record, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			v, _ := record.Get("pending")
			n, _ := v.(int64)
			return n, nil
		})
		if err != nil {
			return err
		}
		count, _ = result.(int64)
		return nil
	})
	if err != nil {
		o.logger.Warn(ctx, "durable outbox pending_count query failed", map[string]interface{}{"error": err.Error()})
		return 0
	}
	return int(count)
}

// ClaimPending atomically claims up to limit pending events for
// workerID, leasing them for lease so a crashed worker's claim expires
// and another drainer can pick the event back up.
func (o *DurableOutbox) ClaimPending(ctx context.Context, workerID string, limit int, lease time.Duration) ([]VectorSyncEvent, error) {
	var claimed []VectorSyncEvent
	err := o.breaker.Execute(ctx, func() error {
		session := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		now := time.Now().UTC()
		rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, claimPendingQuery, map[string]any{
				"now":          now.Format(time.RFC3339Nano),
				"limit":        limit,
				"worker_id":    workerID,
				"lease_expiry": now.Add(lease).Format(time.RFC3339Nano),
			})
			if err != nil {
				return nil, err
			}
			return res.Collect(ctx)
		})
		if err != nil {
			return err
		}
		records, _ := rows.([]*neo4j.Record)
		for _, rec := range records {
			claimed = append(claimed, recordToEvent(rec))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending outbox events: %w", err)
	}
	return claimed, nil
}

// DeleteEvent removes a successfully drained event.
func (o *DurableOutbox) DeleteEvent(ctx context.Context, eventID string) error {
	return o.breaker.Execute(ctx, func() error {
		session := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, deleteEventQuery, map[string]any{"event_id": eventID})
			return nil, err
		})
		return err
	})
}

// UpdateRetryCount records a failed drain attempt and releases the
// claim so the event is eligible for redraining.
func (o *DurableOutbox) UpdateRetryCount(ctx context.Context, eventID string, retryCount int) error {
	return o.breaker.Execute(ctx, func() error {
		session := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, updateRetryCountQuery, map[string]any{
				"event_id":     eventID,
				"retry_count":  retryCount,
			})
			return nil, err
		})
		return err
	})
}

func recordToEvent(rec *neo4j.Record) VectorSyncEvent {
	get := func(key string) any {
		v, _ := rec.Get(key)
		return v
	}
	event := VectorSyncEvent{
		EventID:    asString(get("event_id")),
		Collection: asString(get("collection")),
	}
	if ids, ok := get("pruned_ids").([]any); ok {
		for _, id := range ids {
			event.PrunedIDs = append(event.PrunedIDs, asString(id))
		}
	}
	if rc, ok := get("retry_count").(int64); ok {
		event.RetryCount = int(rc)
	}
	if ts, ok := get("enqueued_at").(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.EnqueuedAt = parsed
		}
	}
	return event
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
