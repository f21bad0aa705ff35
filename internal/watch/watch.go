// Package watch coalesces document mutation notifications into a single
// debounced callback.
package watch

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultWindow is the debounce window between the last mutation batch and
// the rescan.
const DefaultWindow = 100 * time.Millisecond

// Watcher holds at most one pending timer. Every Notify replaces it, so a
// burst of mutations inside the window produces one callback.
type Watcher struct {
	clock  clock.Clock
	window time.Duration
	fire   func()

	mu        sync.Mutex
	timer     *clock.Timer
	gen       uint64
	connected bool
	fired     int
}

// New creates a disconnected Watcher. fire runs on the clock's timer
// goroutine, never while the Watcher's lock is held.
func New(clk clock.Clock, window time.Duration, fire func()) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Watcher{clock: clk, window: window, fire: fire}
}

// Observe starts accepting notifications. It is idempotent.
func (w *Watcher) Observe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
}

// Notify records a mutation batch and (re)schedules the callback.
func (w *Watcher) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.connected {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.window, func() { w.expire(gen) })
}

// expire runs the callback unless the timer was superseded or the watcher
// was disconnected after the timer had already fired.
func (w *Watcher) expire(gen uint64) {
	w.mu.Lock()
	if !w.connected || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.fired++
	w.mu.Unlock()

	w.fire()
}

// Pending reports whether a callback is scheduled.
func (w *Watcher) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// Fired returns how many callbacks have run.
func (w *Watcher) Fired() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// Disconnect cancels any pending callback and ignores later notifications.
func (w *Watcher) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.connected = false
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
