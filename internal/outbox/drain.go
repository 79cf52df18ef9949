package outbox

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
)

// DefaultClaimLimit and DefaultLeaseDuration bound a single durable
// drain pass: how many events one worker claims at a time, and how long
// it holds the claim before another worker is allowed to retry them.
const (
	DefaultClaimLimit    = 50
	DefaultLeaseDuration = 60 * time.Second
)

// SyncFunc performs the actual vector-store reconciliation for one
// event (e.g. deleting pruned ids from a collection's vector index).
type SyncFunc func(ctx context.Context, event VectorSyncEvent) error

// DrainVectorOutbox drains durable pending events first — so a crash
// between enqueue and drain never silently drops work — then drains the
// in-memory fallback queue. Returns the total number of events
// successfully synced. A durable event whose sync fails has its retry
// count bumped and its claim released rather than being deleted, so a
// later drain retries it; an in-memory event that fails sync is
// re-enqueued at the tail.
func DrainVectorOutbox(ctx context.Context, durable *DurableOutbox, memory *MemoryOutbox, sync SyncFunc, logger *logging.Logger) (int, error) {
	drained := 0

	if durable != nil {
		events, err := durable.ClaimPending(ctx, "drainer", DefaultClaimLimit, DefaultLeaseDuration)
		if err != nil {
			logger.Warn(ctx, "durable outbox claim failed", map[string]interface{}{"error": err.Error()})
		}
		for _, event := range events {
			if err := sync(ctx, event); err != nil {
				logger.Warn(ctx, "durable outbox event sync failed, will retry", map[string]interface{}{"event_id": event.EventID, "error": err.Error()})
				if uerr := durable.UpdateRetryCount(ctx, event.EventID, event.RetryCount+1); uerr != nil {
					logger.Error(ctx, "durable outbox retry-count update failed", uerr, map[string]interface{}{"event_id": event.EventID})
				}
				continue
			}
			if derr := durable.DeleteEvent(ctx, event.EventID); derr != nil {
				logger.Error(ctx, "durable outbox delete-after-sync failed", derr, map[string]interface{}{"event_id": event.EventID})
				continue
			}
			drained++
		}
	}

	if memory != nil {
		for _, event := range memory.Drain() {
			if err := sync(ctx, event); err != nil {
				logger.Warn(ctx, "in-memory outbox event sync failed, re-enqueueing", map[string]interface{}{"event_id": event.EventID, "error": err.Error()})
				memory.Enqueue(event)
				continue
			}
			drained++
		}
	}

	return drained, nil
}

// PeriodicVectorDrainer runs a drain function on a cron schedule and
// additionally supports an out-of-band Notify() trigger for
// event-driven drains right after a commit, grounded on
// graph_builder.py's PeriodicVectorDrainer. It is deliberately never
// routed through a BoundedTaskSet: dropping a scheduled drain would let
// the outbox grow unboundedly, whereas dropping an optional per-commit
// side effect (cache warm, audit log) is an acceptable degradation.
type PeriodicVectorDrainer struct {
	drainFn  func(ctx context.Context) (int, error)
	cron     *cron.Cron
	spec     string
	logger   *logging.Logger
	notifyCh chan struct{}
	stopCh   chan struct{}
}

// NewPeriodicVectorDrainer builds a drainer that runs drainFn on the
// given cron spec (e.g. "@every 30s").
func NewPeriodicVectorDrainer(drainFn func(ctx context.Context) (int, error), spec string, logger *logging.Logger) *PeriodicVectorDrainer {
	return &PeriodicVectorDrainer{
		drainFn:  drainFn,
		cron:     cron.New(),
		spec:     spec,
		logger:   logger,
		notifyCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start schedules the cron job and begins listening for Notify calls.
// A drain error is logged and never stops the schedule — a single
// transient failure must not starve all subsequent drains.
func (d *PeriodicVectorDrainer) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.spec, func() { d.runOnce(ctx) })
	if err != nil {
		return err
	}
	d.cron.Start()
	go func() {
		for {
			select {
			case <-d.stopCh:
				return
			case <-d.notifyCh:
				d.runOnce(ctx)
			}
		}
	}()
	return nil
}

func (d *PeriodicVectorDrainer) runOnce(ctx context.Context) {
	n, err := d.drainFn(ctx)
	if err != nil {
		d.logger.Error(ctx, "periodic vector outbox drain failed", err, nil)
		return
	}
	if n > 0 {
		d.logger.Info(ctx, "periodic vector outbox drain completed", map[string]interface{}{"drained": n})
	}
}

// Notify requests an immediate drain in addition to the cron schedule,
// called right after a commit so freshly enqueued events do not wait
// out the full interval. Non-blocking: a pending notification already
// queued is sufficient.
func (d *PeriodicVectorDrainer) Notify() {
	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

// Stop halts the cron schedule and the notify listener. Idempotent.
func (d *PeriodicVectorDrainer) Stop() {
	d.cron.Stop()
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}
