package cells

import (
	"sync"
	"time"
)

type timerEntry struct {
	timer *time.Timer
}

// Timers keeps at most one pending one-shot expiry callback per identifier.
// Scheduling an identifier again replaces its previous timer.
type Timers struct {
	fire func(id string)

	mu      sync.Mutex
	entries map[string]*timerEntry
	stopped bool
	running sync.WaitGroup
}

// NewTimers returns a scheduler that calls fire(id) when a timer elapses.
func NewTimers(fire func(id string)) *Timers {
	return &Timers{
		fire:    fire,
		entries: make(map[string]*timerEntry),
	}
}

// Schedule arranges for fire(id) to run after d. It does nothing once the
// scheduler is stopped.
func (t *Timers) Schedule(id string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if old, ok := t.entries[id]; ok {
		old.timer.Stop()
	}

	e := &timerEntry{}
	e.timer = time.AfterFunc(d, t.expired(id, e))
	t.entries[id] = e
}

// Cancel drops the pending timer for id, if any.
func (t *Timers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		e.timer.Stop()
		delete(t.entries, id)
	}
}

// Pending reports the number of scheduled timers.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop cancels every pending timer and waits for callbacks already running.
// It is safe to call more than once.
func (t *Timers) Stop() {
	t.mu.Lock()
	t.stopped = true
	for id, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, id)
	}
	t.mu.Unlock()

	t.running.Wait()
}

// expired returns the callback for entry e. A callback whose entry was
// replaced or cancelled in the meantime does nothing.
func (t *Timers) expired(id string, e *timerEntry) func() {
	return func() {
		t.mu.Lock()
		if t.stopped || t.entries[id] != e {
			t.mu.Unlock()
			return
		}
		delete(t.entries, id)
		t.running.Add(1)
		t.mu.Unlock()

		defer t.running.Done()
		t.fire(id)
	}
}
