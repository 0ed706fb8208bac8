package player

import (
	"sync"
	"time"
)

// ErrorLogEvent is one recorded failure. Events are never mutated or removed.
type ErrorLogEvent struct {
	Timestamp time.Time
	Message   string
}

// ErrorLog is an append-only, time-ordered record of failures for one item.
// Safe for concurrent use.
type ErrorLog struct {
	mu     sync.Mutex
	events []ErrorLogEvent
}

// NewErrorLog returns an empty error log.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

// Append records message with the current timestamp and returns the created
// event. Timestamps are non-decreasing in append order.
func (l *ErrorLog) Append(message string) ErrorLogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := ErrorLogEvent{Timestamp: time.Now().UTC(), Message: message}
	l.events = append(l.events, ev)
	return ev
}

// All returns a copy of every event in append order.
func (l *ErrorLog) All() []ErrorLogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ErrorLogEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Last returns the most recent event; ok is false when the log is empty.
func (l *ErrorLog) Last() (ev ErrorLogEvent, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return ErrorLogEvent{}, false
	}
	return l.events[len(l.events)-1], true
}

// Len returns the number of recorded events.
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
