package eventloop

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cryguy/fontworker/internal/core"
)

// minInterval is the shortest allowed setInterval period.
const minInterval = 10 * time.Millisecond

// timerEntry represents a pending setTimeout or setInterval callback.
// The actual callback is stored in globalThis.__timerCallbacks[id] on the
// JS side. Go only tracks scheduling metadata.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
}

// EventLoop manages Go-backed timers for setTimeout/setInterval of a
// script worker. It never blocks: the worker goroutine asks for the next
// deadline, waits on it alongside its inbox, and then fires what is due.
type EventLoop struct {
	mu     sync.Mutex
	timers map[int]*timerEntry
	nextID int
	now    func() time.Time
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
		now:    time.Now,
	}
}

// RegisterTimer creates a timer entry and returns its ID.
// The actual JS callback is stored in globalThis.__timerCallbacks[id].
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	if delay < 0 {
		delay = 0
	}
	if isInterval && delay < minInterval {
		delay = minInterval
	}
	entry := &timerEntry{
		deadline: el.now().Add(delay),
		id:       id,
	}
	if isInterval {
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	delete(el.timers, id)
}

// NextDeadline returns the earliest pending timer deadline.
func (el *EventLoop) NextDeadline() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range el.timers {
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// RunDue fires every timer whose deadline has passed, in deadline order,
// pumping microtasks after each. Intervals are rescheduled. A callback
// that throws is passed to onErr, when set, and the batch goes on.
// Returns the number of callbacks fired.
// Must be called on the runtime's goroutine (JS engines are single-threaded).
func (el *EventLoop) RunDue(rt core.JSRuntime, onErr func(id int, err error)) int {
	now := el.now()
	el.mu.Lock()
	var due []*timerEntry
	for _, t := range el.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		if t.interval > 0 {
			t.deadline = now.Add(t.interval)
		} else {
			delete(el.timers, t.id)
		}
	}
	el.mu.Unlock()

	fired := 0
	for _, t := range due {
		// a callback fired earlier in this batch may have cleared it
		if t.interval > 0 && !el.active(t.id) {
			continue
		}
		if err := el.fireTimer(rt, t.id); err != nil && onErr != nil {
			onErr(t.id, err)
		}
		rt.RunMicrotasks()
		fired++
	}
	return fired
}

func (el *EventLoop) active(id int) bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	_, ok := el.timers[id]
	return ok
}

// fireTimer fires a timer callback by invoking the JS-side callback map.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) error {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	return rt.Eval(js)
}

// HasPending returns true if there are any active timers.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0
}

// Reset clears all timers.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
}
