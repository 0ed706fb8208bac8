package player

import "sync"

// EventKind names the signals the core raises to external observers.
type EventKind int

const (
	// EventItemEnded fires when playback exhausts the segment list, after the
	// configured end-of-item action has run.
	EventItemEnded EventKind = iota

	// EventItemFailed fires when an item load fails (playlist fetch, format
	// extraction, or session creation).
	EventItemFailed

	// EventItemErrorLogged fires for every new entry recorded in an item's
	// error log.
	EventItemErrorLogged
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventItemEnded:
		return "item_ended"
	case EventItemFailed:
		return "item_failed"
	case EventItemErrorLogged:
		return "item_error_logged"
	default:
		return "unknown"
	}
}

// Event is delivered to every subscribed observer.
type Event struct {
	Kind    EventKind
	Item    *PlayerItem
	Message string
}

// Observer receives events. Observers must not block; dispatch happens on the
// goroutine that produced the event.
type Observer func(Event)

// EventBus fans events out to subscribed observers in subscription order.
type EventBus struct {
	mu        sync.Mutex
	observers []Observer
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers obs for all future events.
func (b *EventBus) Subscribe(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, obs)
}

// Publish delivers ev to every observer.
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}
