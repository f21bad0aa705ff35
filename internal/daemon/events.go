package daemon

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/gnm/internal/debug"
)

// EventType identifies what changed.
type EventType string

const (
	// EventRefresh means the dictionary or feature set changed.
	EventRefresh EventType = "refresh"
	// EventToggle means the master switch changed.
	EventToggle EventType = "toggle"
)

// Event is published after every successful state change.
type Event struct {
	Type    EventType `json:"type"`
	Enabled bool      `json:"enabled,omitempty"`
}

type eventBus struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool

	dropped atomic.Int64
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[uint64]chan Event)}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// publish delivers ev without blocking. Slow subscribers miss events.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			debug.Warn("daemon", "subscriber queue full, dropped %s event", ev.Type)
		}
	}
}

func (b *eventBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribe returns a channel of state-change events and a function that
// cancels the subscription. The channel is closed on cancel or Stop.
func (d *Daemon) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	return d.events.subscribe(buffer)
}
