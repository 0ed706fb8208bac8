package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Annex-B start code preceding each parameter block.
var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// NAL unit types for the two required parameter blocks; the type lives in the
// low five bits of the byte following the start code.
const (
	nalTypeSPS = 7
	nalTypePPS = 8
)

// ErrFormatNotFound is returned when the first segment's payload does not
// contain both required parameter blocks. Item load aborts on this error.
var ErrFormatNotFound = errors.New("required parameter blocks not found in payload")

// ExtractFormat derives the stream format descriptor from a segment payload
// by locating the SPS and PPS parameter blocks behind their start codes.
// It is called once per item, on the first segment.
func ExtractFormat(payload []byte) (FormatDescriptor, error) {
	var desc FormatDescriptor

	rest := payload
	for {
		i := bytes.Index(rest, startCode)
		if i < 0 {
			break
		}
		unit := rest[i+len(startCode):]
		if next := bytes.Index(unit, startCode); next >= 0 {
			unit = unit[:next]
		}
		if len(unit) > 0 {
			switch unit[0] & 0x1F {
			case nalTypeSPS:
				if desc.SPS == nil {
					desc.SPS = unit
				}
			case nalTypePPS:
				if desc.PPS == nil {
					desc.PPS = unit
				}
			}
		}
		rest = rest[i+len(startCode):]
	}

	if desc.SPS == nil || desc.PPS == nil {
		return FormatDescriptor{}, ErrFormatNotFound
	}
	return desc, nil
}

// frameDelivery pairs a decoded frame with the key of the session that
// produced it, so late deliveries from a torn-down session can be dropped.
type frameDelivery struct {
	sessionKey string
	frame      Frame
}

// DecodePipeline owns the decode session for the active item, submits
// segment payloads for decode, and routes decoded output to the display and
// audio sinks. Frame presentation always happens on a single goroutine,
// regardless of which goroutine the decoder signals from.
type DecodePipeline struct {
	mu         sync.Mutex
	decoder    Decoder
	display    DisplaySink
	audio      AudioSink
	log        *slog.Logger
	session    DecoderSession
	sessionKey string // identifies the live session; empty when none

	deliverActive bool
	onError       func(message string)
	onFrame       func(Frame)

	frames chan frameDelivery
	stop   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

// NewDecodePipeline wires a pipeline to its decoder and sinks and starts the
// presentation goroutine. onError receives per-unit decode failures; onFrame
// (optional) observes each presented frame. Call Close when done.
func NewDecodePipeline(decoder Decoder, display DisplaySink, audio AudioSink, log *slog.Logger, onError func(string), onFrame func(Frame)) *DecodePipeline {
	p := &DecodePipeline{
		decoder: decoder,
		display: display,
		audio:   audio,
		log:     log,
		onError: onError,
		onFrame: onFrame,
		frames:  make(chan frameDelivery, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.presentLoop()
	return p
}

// presentLoop drains decoded frames on a single goroutine. Frames from a
// session that is no longer live, or arriving while delivery is inactive,
// are dropped.
func (p *DecodePipeline) presentLoop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case d := <-p.frames:
			p.mu.Lock()
			live := p.deliverActive && d.sessionKey == p.sessionKey
			p.mu.Unlock()
			if !live {
				continue
			}
			p.display.Present(d.frame)
			if p.onFrame != nil {
				p.onFrame(d.frame)
			}
		}
	}
}

// Establish creates the decode session for an item from its format
// descriptor. At most one session is live; establishing replaces any
// previous session.
func (p *DecodePipeline) Establish(desc FormatDescriptor) error {
	session, err := p.decoder.Establish(desc)
	if err != nil {
		return fmt.Errorf("establish decode session: %w", err)
	}

	p.mu.Lock()
	if p.session != nil {
		_ = p.session.Close()
	}
	p.session = session
	p.sessionKey = uuid.NewString()
	p.mu.Unlock()
	return nil
}

// Decode submits one segment payload as a single decode unit. A failing unit
// is reported through onError and skipped; the session stays usable. The
// payload bytes are also handed to the audio sink as-is -- a pass-through
// stub, not a real audio decode step. ctx is the issuing item's context: once
// it is canceled the payload is dropped, so a replaced or stopped item's data
// never reaches a session established after it.
func (p *DecodePipeline) Decode(ctx context.Context, payload []byte) {
	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	session := p.session
	key := p.sessionKey
	audio := p.audio
	p.mu.Unlock()

	if session == nil {
		return
	}

	audio.Enqueue(payload)

	session.Submit(payload, func(frame Frame, err error) {
		if err != nil {
			p.log.Debug("decode unit failed", slog.String("error", err.Error()))
			if p.onError != nil {
				p.onError("decode failed: " + err.Error())
			}
			return
		}
		// May run on a decoder-owned goroutine; presentation is marshaled
		// through the frames channel.
		select {
		case p.frames <- frameDelivery{sessionKey: key, frame: frame}:
		case <-p.stop:
		}
	})
}

// SetDeliveryActive marks frame delivery active or inactive. Inactive
// delivery drops frames without tearing down the session.
func (p *DecodePipeline) SetDeliveryActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliverActive = active
}

// Teardown closes and forgets the live session, if any. Deliveries still in
// flight for it are dropped by the presentation loop.
func (p *DecodePipeline) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		_ = p.session.Close()
		p.session = nil
	}
	p.sessionKey = ""
}

// HasSession reports whether a decode session is currently live.
func (p *DecodePipeline) HasSession() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Close tears down the session and stops the presentation goroutine.
func (p *DecodePipeline) Close() {
	p.Teardown()
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
}
