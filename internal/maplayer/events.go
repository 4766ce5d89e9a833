package maplayer

import "sync"

// EventKind names a view-level event stream.
type EventKind string

// View-level event kinds.
const (
	EventPointerMove EventKind = "pointermove"
	EventKeyDown     EventKind = "keydown"
	EventKeyUp       EventKind = "keyup"
	EventBlur        EventKind = "blur"
	EventResize      EventKind = "resize"
)

// Event is a view-level event. Only the fields relevant to Kind are set.
type Event struct {
	Kind  EventKind
	Key   string
	At    Point
	Width int
}

// EventSource delivers view-level events to subscribers. The returned func
// removes the subscription.
type EventSource interface {
	Subscribe(kind EventKind, fn func(Event)) (unsubscribe func())
}

// Bus is an in-process EventSource.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[EventKind]map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventKind]map[int]func(Event))}
}

// Subscribe implements EventSource.
func (b *Bus) Subscribe(kind EventKind, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]func(Event))
	}
	b.subs[kind][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[kind], id)
		})
	}
}

// Emit delivers ev synchronously to every subscriber of its kind.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs[ev.Kind]))
	for _, fn := range b.subs[ev.Kind] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.subs {
		n += len(m)
	}
	return n
}
