package outbox

import "sync"

// BoundedTaskSet governs per-commit background work (SPEC_FULL.md
// section 5): at most maxTasks goroutines may be tracked concurrently.
// TryAdd rejects a task over capacity rather than growing unbounded,
// grounded on distributed_lock.py's BoundedTaskSet and exercised by
// test_vector_sync_resilience.py's TestBoundedTaskSetOverflowCallback
// suite. Go has no asyncio.Task to cancel on rejection, so callers pass
// a cleanup/cancel func instead of a task handle; TryAdd invokes it
// immediately when the set is at capacity.
type BoundedTaskSet struct {
	mu         sync.Mutex
	max        int
	active     int
	onOverflow func()
	overflowCt int
}

// NewBoundedTaskSet builds a set capped at maxTasks concurrent entries.
// onOverflow, if non-nil, is invoked synchronously every time TryAdd
// rejects a task because the set is already full.
func NewBoundedTaskSet(maxTasks int, onOverflow func()) *BoundedTaskSet {
	return &BoundedTaskSet{max: maxTasks, onOverflow: onOverflow}
}

// TryAdd attempts to register one more concurrent task, returning
// false (and invoking onOverflow, and cancelFn if non-nil) without
// registering anything if the set is already at capacity.
func (s *BoundedTaskSet) TryAdd(cancelFn func()) bool {
	s.mu.Lock()
	if s.active >= s.max {
		s.overflowCt++
		s.mu.Unlock()
		if s.onOverflow != nil {
			s.onOverflow()
		}
		if cancelFn != nil {
			cancelFn()
		}
		return false
	}
	s.active++
	s.mu.Unlock()
	return true
}

// Done marks one tracked task as finished, freeing a slot. Callers that
// received true from TryAdd must call Done exactly once, typically via
// defer, when their background goroutine completes.
func (s *BoundedTaskSet) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
}

// OverflowCount reports how many TryAdd calls have been rejected since
// construction.
func (s *BoundedTaskSet) OverflowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflowCt
}

// MaxTasks reports the configured capacity, settable at test time via
// SetMaxTasks to simulate exhaustion (mirrors test code reaching into
// _BACKGROUND_TASKS._max directly).
func (s *BoundedTaskSet) MaxTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// SetMaxTasks adjusts capacity at runtime.
func (s *BoundedTaskSet) SetMaxTasks(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.max = max
}
