package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hls-player/internal/platform/metrics"
)

// State is the playback state machine position.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// ActionAtItemEnd selects what happens when the segment list is exhausted.
type ActionAtItemEnd int

const (
	ActionPause ActionAtItemEnd = iota
	ActionStop
	ActionLoop
)

// String returns the action name.
func (a ActionAtItemEnd) String() string {
	switch a {
	case ActionStop:
		return "stop"
	case ActionLoop:
		return "loop"
	default:
		return "pause"
	}
}

// ParseActionAtItemEnd parses an action name ("pause", "stop", "loop").
func ParseActionAtItemEnd(s string) (ActionAtItemEnd, error) {
	switch s {
	case "pause":
		return ActionPause, nil
	case "stop":
		return ActionStop, nil
	case "loop":
		return ActionLoop, nil
	default:
		return ActionPause, fmt.Errorf("unknown action at item end: %q", s)
	}
}

var (
	// ErrNoItem is returned when a control call requires a loaded item.
	ErrNoItem = errors.New("no item loaded")

	// ErrItemReplaced is returned when a load is superseded by a newer load
	// before it finishes.
	ErrItemReplaced = errors.New("item replaced during load")
)

// PlaybackController coordinates play/pause/stop/seek/loop and end-of-item
// behavior. All core state (current item, segment index, playback state,
// buffering flags) is guarded by one mutex; fetch completions and decode
// callbacks from other goroutines re-enter through methods that take it.
// Sink implementations must not call back into the controller.
type PlaybackController struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	bus     *EventBus

	fetcher   Fetcher
	pipeline  *DecodePipeline
	scheduler *SegmentScheduler
	monitor   *BufferMonitor
	audio     AudioSink

	mu           sync.Mutex
	item         *PlayerItem
	state        State
	currentIndex int
	currentTime  float64
	actionAtEnd  ActionAtItemEnd
	desc         FormatDescriptor
	haveDesc     bool

	itemCtx    context.Context
	itemCancel context.CancelFunc
}

// NewPlaybackController wires the controller to its collaborators. metrics
// may be nil to disable recording (e.g. in tests).
func NewPlaybackController(fetcher Fetcher, decoder Decoder, display DisplaySink, audio AudioSink, monitor *BufferMonitor, log *slog.Logger, m *metrics.Metrics) *PlaybackController {
	c := &PlaybackController{
		log:     log,
		metrics: m,
		bus:     NewEventBus(),
		fetcher: fetcher,
		monitor: monitor,
		audio:   audio,
	}
	c.pipeline = NewDecodePipeline(decoder, display, audio, log, c.decodeErrorOccurred, c.framePresented)
	c.scheduler = NewSegmentScheduler(fetcher, c.pipeline, monitor, log, c.segmentCompleted)
	return c
}

// Subscribe registers an observer for item events.
func (c *PlaybackController) Subscribe(obs Observer) {
	c.bus.Subscribe(obs)
}

// Load replaces the current item with one for url: it fetches and parses the
// playlist, derives the stream format from the first segment, and establishes
// the decode session. Any in-flight work for the previous item is canceled.
// On failure the item is marked failed, the failure is logged to its error
// log, an item-failed event fires, and the error is returned to the caller.
func (c *PlaybackController) Load(url Locator, quality Quality) error {
	c.mu.Lock()
	if c.itemCancel != nil {
		c.itemCancel()
	}
	c.pipeline.SetDeliveryActive(false)
	c.pipeline.Teardown()
	c.audio.Stop()

	item := NewPlayerItem(url)
	item.Quality = quality
	c.item = item
	c.state = StateIdle
	c.currentIndex = 0
	c.currentTime = 0
	c.haveDesc = false
	c.itemCtx, c.itemCancel = context.WithCancel(context.Background())
	ctx := c.itemCtx
	c.mu.Unlock()

	text, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return c.failLoad(ctx, item, fmt.Sprintf("playlist fetch failed: %v", err), err)
	}

	pl, err := Parse(string(text))
	if err != nil {
		return c.failLoad(ctx, item, fmt.Sprintf("playlist parse failed: %v", err), err)
	}

	// The format descriptor is derived once, from the first segment. A
	// playlist with zero segments is valid and loads without a session.
	var desc FormatDescriptor
	haveDesc := false
	if len(pl.Segments) > 0 {
		payload, err := c.fetcher.Fetch(ctx, pl.Segments[0].URL)
		if err != nil {
			return c.failLoad(ctx, item, fmt.Sprintf("first segment fetch failed: %v", err), err)
		}
		desc, err = ExtractFormat(payload)
		if err != nil {
			return c.failLoad(ctx, item, fmt.Sprintf("format extraction failed: %v", err), err)
		}
		haveDesc = true
	}

	if haveDesc {
		if err := c.pipeline.Establish(desc); err != nil {
			return c.failLoad(ctx, item, fmt.Sprintf("decode session creation failed: %v", err), err)
		}
	}

	c.mu.Lock()
	if c.item != item {
		c.mu.Unlock()
		return ErrItemReplaced
	}
	item.Playlist = pl
	item.Segments = pl.Segments
	item.Variants = pl.Variants
	item.Status = StatusReadyToPlay
	c.desc = desc
	c.haveDesc = haveDesc
	c.mu.Unlock()

	c.log.Info("item loaded",
		slog.String("url", string(url)),
		slog.Int("segments", len(pl.Segments)),
		slog.Int("variants", len(pl.Variants)))
	return nil
}

// failLoad marks item failed and reports the failure, unless the load was
// superseded or canceled, in which case the stale result is dropped.
func (c *PlaybackController) failLoad(ctx context.Context, item *PlayerItem, message string, cause error) error {
	if ctx.Err() != nil {
		return ErrItemReplaced
	}

	c.mu.Lock()
	current := c.item == item
	if current {
		item.Status = StatusFailed
		item.ErrorOccurred = true
	}
	c.mu.Unlock()
	if !current {
		return ErrItemReplaced
	}

	item.ErrorLog.Append(message)
	if c.metrics != nil {
		c.metrics.IncLoadFailures()
	}
	c.log.Error("item load failed", slog.String("url", string(item.URL)), slog.String("error", message))
	c.bus.Publish(Event{Kind: EventItemErrorLogged, Item: item, Message: message})
	c.bus.Publish(Event{Kind: EventItemFailed, Item: item, Message: message})
	return cause
}

// Play starts or resumes playback. It is a no-op while already playing.
// Restarting from Stopped re-establishes the decode session from the format
// derived at load time.
func (c *PlaybackController) Play() error {
	var events []Event
	c.mu.Lock()
	if c.item == nil {
		c.mu.Unlock()
		return ErrNoItem
	}
	if c.state == StatePlaying {
		c.mu.Unlock()
		return nil
	}

	if c.state == StateStopped {
		c.itemCtx, c.itemCancel = context.WithCancel(context.Background())
		if c.haveDesc {
			if err := c.pipeline.Establish(c.desc); err != nil {
				c.mu.Unlock()
				return err
			}
		}
	}

	c.state = StatePlaying
	c.audio.Play()
	c.pipeline.SetDeliveryActive(true)
	if c.metrics != nil {
		c.metrics.IncPlaybacksStarted()
	}
	events = c.advanceLocked()
	c.mu.Unlock()

	c.publish(events)
	return nil
}

// Pause suspends playback. It is a no-op unless playing; the decode session
// and buffered state are preserved.
func (c *PlaybackController) Pause() error {
	c.mu.Lock()
	if c.item == nil {
		c.mu.Unlock()
		return ErrNoItem
	}
	c.pauseLocked()
	c.mu.Unlock()
	return nil
}

// Stop halts playback unconditionally: the segment index resets to zero,
// frame delivery deactivates, audio output stops, the decode session is torn
// down, and any in-flight fetch is canceled.
func (c *PlaybackController) Stop() error {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	return nil
}

// Seek moves the playback position to targetTime seconds: segments are
// scanned in order accumulating durations until the running total reaches
// the target, and that segment becomes current. A target beyond the total
// duration falls back to index zero. The segment at the new index is loaded
// immediately; if playback was active it continues from there. While stopped
// only the position moves, and Play picks it up from there.
func (c *PlaybackController) Seek(targetTime float64) error {
	c.mu.Lock()
	if c.item == nil {
		c.mu.Unlock()
		return ErrNoItem
	}
	c.seekLocked(targetTime)
	c.mu.Unlock()
	return nil
}

// SetActionAtItemEnd selects the end-of-item behavior.
func (c *PlaybackController) SetActionAtItemEnd(a ActionAtItemEnd) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actionAtEnd = a
}

// SetVolume passes the level through to the audio sink.
func (c *PlaybackController) SetVolume(level float64) {
	c.audio.SetVolume(level)
}

// CheckBuffer runs a buffer check against the current item and returns the
// computed flags. Safe to call with no item loaded.
func (c *PlaybackController) CheckBuffer() BufferFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	flags := c.monitor.Check(c.item)
	if c.metrics != nil {
		c.metrics.SetBufferFlags(flags.Empty, flags.LikelyToKeepUp, flags.Full)
	}
	return flags
}

// Close stops playback and shuts down the decode pipeline.
func (c *PlaybackController) Close() {
	_ = c.Stop()
	c.pipeline.Close()
}

// Status is a point-in-time snapshot of the controller and its item.
type Status struct {
	State               string  `json:"state"`
	CurrentSegmentIndex int     `json:"current_segment_index"`
	CurrentTime         float64 `json:"current_time"`
	ActionAtItemEnd     string  `json:"action_at_item_end"`

	URL            string `json:"url,omitempty"`
	ItemStatus     string `json:"item_status,omitempty"`
	SegmentCount   int    `json:"segment_count"`
	VariantCount   int    `json:"variant_count"`
	BufferEmpty    bool   `json:"buffer_empty"`
	LikelyToKeepUp bool   `json:"likely_to_keep_up"`
	BufferFull     bool   `json:"buffer_full"`
	ErrorOccurred  bool   `json:"error_occurred"`
	LastError      string `json:"last_error,omitempty"`
}

// Status returns a snapshot for the control surface.
func (c *PlaybackController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:               c.state.String(),
		CurrentSegmentIndex: c.currentIndex,
		CurrentTime:         c.currentTime,
		ActionAtItemEnd:     c.actionAtEnd.String(),
	}
	if c.item != nil {
		st.URL = string(c.item.URL)
		st.ItemStatus = c.item.Status.String()
		st.SegmentCount = len(c.item.Segments)
		st.VariantCount = len(c.item.Variants)
		st.BufferEmpty = c.item.BufferEmpty
		st.LikelyToKeepUp = c.item.LikelyToKeepUp
		st.BufferFull = c.item.BufferFull
		st.ErrorOccurred = c.item.ErrorOccurred
		if ev, ok := c.item.ErrorLog.Last(); ok {
			st.LastError = ev.Message
		}
	}
	return st
}

// pauseLocked implements Pause. Requires c.mu.
func (c *PlaybackController) pauseLocked() {
	if c.state != StatePlaying {
		return
	}
	c.state = StatePaused
	c.audio.Pause()
	c.pipeline.SetDeliveryActive(false)
}

// stopLocked implements Stop. Requires c.mu.
func (c *PlaybackController) stopLocked() {
	c.currentIndex = 0
	c.currentTime = 0
	c.pipeline.SetDeliveryActive(false)
	c.audio.Stop()
	c.pipeline.Teardown()
	if c.itemCancel != nil {
		c.itemCancel()
	}
	c.state = StateStopped
}

// seekLocked implements Seek. Requires c.mu and a loaded item.
func (c *PlaybackController) seekLocked(targetTime float64) {
	index := 0
	found := false
	cumulative := 0.0
	for i, seg := range c.item.Segments {
		cumulative += seg.Duration
		if cumulative >= targetTime {
			index = i
			found = true
			break
		}
	}
	if found {
		c.currentTime = targetTime
	} else {
		// Target beyond total duration: documented fallback to the start.
		c.currentTime = 0
	}
	c.currentIndex = index
	if c.state == StateStopped {
		// Stop canceled the item context, so a fetch issued here would be
		// dead on arrival. The position still moves; loading resumes when
		// Play re-creates the context.
		return
	}
	c.scheduler.LoadSegment(c.itemCtx, c.item.Segments, index)
}

// playNextLocked loads the current segment and advances the index. The
// advance is unconditional, not gated on fetch success. Requires c.mu.
func (c *PlaybackController) playNextLocked() {
	if c.state != StatePlaying || c.item == nil || c.currentIndex >= len(c.item.Segments) {
		return
	}
	c.scheduler.LoadSegment(c.itemCtx, c.item.Segments, c.currentIndex)
	c.currentIndex++
}

// advanceLocked continues playback: either the next segment is loaded or,
// with the list exhausted, the end-of-item action runs. Returns events to
// publish after the lock is released. Requires c.mu.
func (c *PlaybackController) advanceLocked() []Event {
	if c.state != StatePlaying || c.item == nil {
		return nil
	}
	if c.currentIndex < len(c.item.Segments) {
		c.playNextLocked()
		return nil
	}
	return c.handleEndOfItemLocked()
}

// handleEndOfItemLocked dispatches on the configured end-of-item action and
// emits the playback-ended event. Requires c.mu.
func (c *PlaybackController) handleEndOfItemLocked() []Event {
	item := c.item
	switch c.actionAtEnd {
	case ActionStop:
		c.stopLocked()
	case ActionLoop:
		c.seekLocked(0)
		// Play would be re-entered here; it is a no-op while still playing,
		// and the seek above already restarted loading at the new index.
	default:
		c.pauseLocked()
	}
	if c.metrics != nil {
		c.metrics.IncItemsEnded()
	}
	c.log.Info("item reached end",
		slog.String("url", string(item.URL)),
		slog.String("action", c.actionAtEnd.String()))
	return []Event{{Kind: EventItemEnded, Item: item}}
}

// segmentCompleted is the scheduler's completion callback: it records the
// outcome, refreshes the buffer flags on the item, and keeps playback moving.
// ctx is the context the fetch was issued under; a completion whose context
// is no longer the live item's belongs to a stopped or replaced item and is
// dropped without touching the current one.
func (c *PlaybackController) segmentCompleted(ctx context.Context, index int, err error) {
	var events []Event
	c.mu.Lock()
	if ctx.Err() != nil || ctx != c.itemCtx {
		c.mu.Unlock()
		return
	}
	item := c.item
	if item == nil {
		c.mu.Unlock()
		return
	}

	if err != nil {
		// No retry: the failure is recorded and the segment skipped.
		item.ErrorOccurred = true
		item.ErrorLog.Append(fmt.Sprintf("segment %d fetch failed: %v", index, err))
		events = append(events, Event{Kind: EventItemErrorLogged, Item: item, Message: err.Error()})
		if c.metrics != nil {
			c.metrics.IncSegmentFetchFailures()
		}
	} else {
		if index < len(item.Segments) {
			c.currentTime += item.Segments[index].Duration
		}
		if c.metrics != nil {
			c.metrics.IncSegmentsFetched()
		}
	}

	flags := c.monitor.Check(item)
	if c.metrics != nil {
		c.metrics.SetBufferFlags(flags.Empty, flags.LikelyToKeepUp, flags.Full)
	}

	events = append(events, c.advanceLocked()...)
	c.mu.Unlock()

	c.publish(events)
}

// decodeErrorOccurred is the pipeline's per-unit failure callback. Decode
// failures never abort playback.
func (c *PlaybackController) decodeErrorOccurred(message string) {
	c.mu.Lock()
	item := c.item
	if item != nil {
		item.ErrorOccurred = true
	}
	c.mu.Unlock()
	if item == nil {
		return
	}

	item.ErrorLog.Append(message)
	if c.metrics != nil {
		c.metrics.IncDecodeFailures()
	}
	c.bus.Publish(Event{Kind: EventItemErrorLogged, Item: item, Message: message})
}

// framePresented records the presentation size reported by decoded frames.
func (c *PlaybackController) framePresented(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item != nil && f.Width > 0 && f.Height > 0 {
		c.item.PresentationSize = PresentationSize{Width: f.Width, Height: f.Height}
	}
}

func (c *PlaybackController) publish(events []Event) {
	for _, ev := range events {
		c.bus.Publish(ev)
	}
}
