package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// The interfaces in this file are the capabilities the core requires from its
// collaborators: network fetch, the decode implementation, and the display
// and audio outputs. The core defines the contracts; real implementations
// live outside it.

// Fetcher retrieves the payload behind a locator. One call per segment, no
// built-in retry; cancellation is carried by ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url Locator) ([]byte, error)
}

// FormatDescriptor describes the elementary stream's format, built from the
// two parameter blocks extracted from the first segment.
type FormatDescriptor struct {
	SPS []byte
	PPS []byte
}

// Frame is one decoded video picture.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Decoder is the external decode capability.
type Decoder interface {
	// Establish creates a decode session bound to the given stream format.
	Establish(desc FormatDescriptor) (DecoderSession, error)
}

// DecoderSession decodes sequential submissions for one stream format.
// Results arrive on the deliver callback, possibly from a goroutine owned by
// the decoder; submissions are strictly one at a time per segment.
type DecoderSession interface {
	Submit(payload []byte, deliver func(Frame, error))
	Close() error
}

// DisplaySink receives decoded frames. Present is always invoked from a
// single goroutine; aspect-fit rendering is the sink's concern.
type DisplaySink interface {
	Present(frame Frame)
}

// AudioSink is the audio output capability.
type AudioSink interface {
	Enqueue(samples []byte)
	Play()
	Pause()
	Stop()
	SetVolume(level float64)
}

// HTTPFetcher implements Fetcher over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using the given timeout per request.
// A zero timeout disables the limit.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.Fetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url Locator) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(url), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// LoopbackDecoder is a stand-in decode capability for environments without a
// real decoder: every submission is delivered back as a single frame carrying
// the raw payload.
type LoopbackDecoder struct{}

type loopbackSession struct {
	mu     sync.Mutex
	closed bool
}

// Establish implements Decoder.Establish.
func (LoopbackDecoder) Establish(desc FormatDescriptor) (DecoderSession, error) {
	if len(desc.SPS) == 0 || len(desc.PPS) == 0 {
		return nil, fmt.Errorf("loopback decoder: incomplete format descriptor")
	}
	return &loopbackSession{}, nil
}

func (s *loopbackSession) Submit(payload []byte, deliver func(Frame, error)) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		deliver(Frame{}, fmt.Errorf("loopback decoder: session closed"))
		return
	}
	deliver(Frame{Data: payload}, nil)
}

func (s *loopbackSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// DiscardDisplay drops every frame. Used when no real presentation surface
// is attached.
type DiscardDisplay struct{}

// Present implements DisplaySink.Present.
func (DiscardDisplay) Present(Frame) {}

// SilentAudio is an AudioSink that tracks control calls but produces no
// sound.
type SilentAudio struct {
	mu      sync.Mutex
	playing bool
	volume  float64
}

// NewSilentAudio returns a silent sink at full volume.
func NewSilentAudio() *SilentAudio {
	return &SilentAudio{volume: 1.0}
}

// Enqueue implements AudioSink.Enqueue.
func (a *SilentAudio) Enqueue([]byte) {}

// Play implements AudioSink.Play.
func (a *SilentAudio) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = true
}

// Pause implements AudioSink.Pause.
func (a *SilentAudio) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
}

// Stop implements AudioSink.Stop.
func (a *SilentAudio) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
}

// SetVolume implements AudioSink.SetVolume.
func (a *SilentAudio) SetVolume(level float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volume = level
}

// Playing reports whether Play has been called without a later Pause or Stop.
func (a *SilentAudio) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}
