package outbox

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// SpilloverFunc receives events evicted from a CoalescingOutbox once it
// is at capacity, so they are not lost — wired to a DurableOutbox's
// WriteEvent in production.
type SpilloverFunc func(events []VectorSyncEvent)

type coalescingEntry struct {
	event VectorSyncEvent
	last  time.Time
}

// CoalescingOutbox merges repeated events for the same (collection,
// pruned ids) key within windowSeconds of each other into a single
// pending entry, and bounds total pending entries at maxEntries,
// spilling the oldest entries to spilloverFn on overflow. Grounded on
// vector_sync_outbox.py's CoalescingOutbox, exercised by
// test_vector_sync_resilience.py's TestCoalescingOutboxMemoryCap suite.
type CoalescingOutbox struct {
	mu            sync.Mutex
	windowSeconds float64
	maxEntries    int
	spilloverFn   SpilloverFunc

	order   []string
	entries map[string]*coalescingEntry
	now     func() time.Time
}

var _ Outbox = (*CoalescingOutbox)(nil)

// CoalescingOutboxOption configures a CoalescingOutbox at construction.
type CoalescingOutboxOption func(*CoalescingOutbox)

// WithMaxEntries bounds the number of distinct pending entries; zero or
// negative means unbounded (no spillover), matching
// test_no_spillover_fn_preserves_original_behavior.
func WithMaxEntries(max int) CoalescingOutboxOption {
	return func(o *CoalescingOutbox) { o.maxEntries = max }
}

// WithSpilloverFunc installs the callback invoked with evicted events.
func WithSpilloverFunc(fn SpilloverFunc) CoalescingOutboxOption {
	return func(o *CoalescingOutbox) { o.spilloverFn = fn }
}

// NewCoalescingOutbox builds a CoalescingOutbox that merges duplicate
// keys within windowSeconds of each other. windowSeconds <= 0 disables
// the time expiry, so a repeated key coalesces for the entry's entire
// lifetime in the queue.
func NewCoalescingOutbox(windowSeconds float64, opts ...CoalescingOutboxOption) *CoalescingOutbox {
	o := &CoalescingOutbox{
		windowSeconds: windowSeconds,
		entries:       make(map[string]*coalescingEntry),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func coalesceKey(event VectorSyncEvent) string {
	ids := append([]string(nil), event.PrunedIDs...)
	sort.Strings(ids)
	return event.Collection + "|" + strings.Join(ids, ",")
}

// Enqueue merges event into an existing entry for the same key if one
// is still within the coalescing window, otherwise appends a new entry;
// if the resulting pending count exceeds maxEntries, the oldest entries
// are evicted and handed to spilloverFn.
func (o *CoalescingOutbox) Enqueue(event VectorSyncEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if event.EventID == "" {
		event = NewVectorSyncEvent(event.Collection, event.PrunedIDs)
	}
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = o.now()
	}

	key := coalesceKey(event)
	now := o.now()
	if existing, ok := o.entries[key]; ok {
		if o.windowSeconds <= 0 || now.Sub(existing.last).Seconds() <= o.windowSeconds {
			existing.last = now
			existing.event = event
			return
		}
	}

	o.entries[key] = &coalescingEntry{event: event, last: now}
	o.order = append(o.order, key)
	o.evictLocked()
}

func (o *CoalescingOutbox) evictLocked() {
	if o.maxEntries <= 0 {
		return
	}
	var spilled []VectorSyncEvent
	for len(o.order) > o.maxEntries {
		oldestKey := o.order[0]
		o.order = o.order[1:]
		if entry, ok := o.entries[oldestKey]; ok {
			spilled = append(spilled, entry.event)
			delete(o.entries, oldestKey)
		}
	}
	if len(spilled) > 0 && o.spilloverFn != nil {
		o.spilloverFn(spilled)
	}
}

// PendingCount returns the number of distinct coalesced entries.
func (o *CoalescingOutbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.order)
}

// Drain removes and returns every pending entry, oldest first.
func (o *CoalescingOutbox) Drain() []VectorSyncEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	drained := make([]VectorSyncEvent, 0, len(o.order))
	for _, key := range o.order {
		if entry, ok := o.entries[key]; ok {
			drained = append(drained, entry.event)
		}
	}
	o.order = nil
	o.entries = make(map[string]*coalescingEntry)
	return drained
}
