package player

import (
	"sync"
	"time"
)

// Default thresholds for the buffering heuristic.
const (
	DefaultEmptyAfterFailures = 3
	DefaultFullAfterSeconds   = 5.0
	DefaultResetInterval      = time.Second
)

// BufferFlags are the three derived buffering signals.
type BufferFlags struct {
	Empty          bool
	LikelyToKeepUp bool
	Full           bool
}

// BufferMonitor derives buffering signals from rolling read-success/failure
// counters and accumulated buffered duration. Safe for concurrent use.
type BufferMonitor struct {
	mu              sync.Mutex
	successfulReads int
	failedReads     int
	bufferDuration  float64 // seconds
	lastCheck       time.Time

	emptyAfterFailures int
	fullAfterSeconds   float64
	resetInterval      time.Duration
}

// NewBufferMonitor returns a monitor with the given thresholds. Zero or
// negative values fall back to the defaults.
func NewBufferMonitor(emptyAfterFailures int, fullAfterSeconds float64, resetInterval time.Duration) *BufferMonitor {
	if emptyAfterFailures <= 0 {
		emptyAfterFailures = DefaultEmptyAfterFailures
	}
	if fullAfterSeconds <= 0 {
		fullAfterSeconds = DefaultFullAfterSeconds
	}
	if resetInterval <= 0 {
		resetInterval = DefaultResetInterval
	}
	return &BufferMonitor{
		lastCheck:          time.Now(),
		emptyAfterFailures: emptyAfterFailures,
		fullAfterSeconds:   fullAfterSeconds,
		resetInterval:      resetInterval,
	}
}

// RecordResult increments the success or failure counter. Invoked on fetch
// completion.
func (m *BufferMonitor) RecordResult(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.successfulReads++
	} else {
		m.failedReads++
	}
}

// AddBuffered adds seconds of media to the buffered-duration accumulator.
func (m *BufferMonitor) AddBuffered(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferDuration += seconds
}

// Check computes the buffer flags from the current counters and writes them
// onto item unconditionally. If more than the reset interval has elapsed
// since the previous check, the counters are then zeroed; the returned flags
// always reflect the pre-reset counters.
func (m *BufferMonitor) Check(item *PlayerItem) BufferFlags {
	m.mu.Lock()

	flags := BufferFlags{
		Empty:          m.failedReads >= m.emptyAfterFailures,
		LikelyToKeepUp: m.successfulReads > m.failedReads,
		Full:           m.bufferDuration >= m.fullAfterSeconds,
	}

	now := time.Now()
	if now.Sub(m.lastCheck) > m.resetInterval {
		m.successfulReads = 0
		m.failedReads = 0
		m.bufferDuration = 0
		m.lastCheck = now
	}
	m.mu.Unlock()

	if item != nil {
		item.BufferEmpty = flags.Empty
		item.LikelyToKeepUp = flags.LikelyToKeepUp
		item.BufferFull = flags.Full
	}
	return flags
}
