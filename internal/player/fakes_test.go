package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// validPayload returns a segment payload carrying both parameter blocks, so
// format extraction succeeds.
func validPayload() []byte {
	payload := append([]byte{}, startCode...)
	payload = append(payload, 0x67, 0x42, 0x00, 0x1F)
	payload = append(payload, startCode...)
	payload = append(payload, 0x68, 0xCE, 0x38, 0x80)
	return payload
}

// fakeFetcher serves canned payloads keyed by locator.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[Locator][]byte
	errs  map[Locator]error
	calls []Locator
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: make(map[Locator][]byte), errs: make(map[Locator]error)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url Locator) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	payload, ok := f.data[url]
	err := f.errs[url]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no payload for %s", url)
	}
	return payload, nil
}

func (f *fakeFetcher) callCount(url Locator) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

// stepFetcher blocks every fetch until the test grants a token, making the
// asynchronous drive loop deterministic.
type stepFetcher struct {
	data map[Locator][]byte
	gate chan struct{}
}

func newStepFetcher(data map[Locator][]byte) *stepFetcher {
	return &stepFetcher{data: data, gate: make(chan struct{})}
}

func (f *stepFetcher) Fetch(ctx context.Context, url Locator) ([]byte, error) {
	select {
	case <-f.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	payload, ok := f.data[url]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", url)
	}
	return payload, nil
}

func (f *stepFetcher) grant(n int) {
	for i := 0; i < n; i++ {
		f.gate <- struct{}{}
	}
}

// fakeDecoder hands out sessions that deliver one frame per submission, or
// an error when failing is set.
type fakeDecoder struct {
	mu          sync.Mutex
	established int
	failNext    bool
}

type fakeSession struct {
	dec    *fakeDecoder
	mu     sync.Mutex
	closed bool
	units  int
}

func (d *fakeDecoder) Establish(desc FormatDescriptor) (DecoderSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext {
		return nil, fmt.Errorf("decoder rejected format")
	}
	d.established++
	return &fakeSession{dec: d}, nil
}

func (s *fakeSession) Submit(payload []byte, deliver func(Frame, error)) {
	s.mu.Lock()
	s.units++
	s.mu.Unlock()
	if len(payload) == 0 {
		deliver(Frame{}, fmt.Errorf("empty decode unit"))
		return
	}
	deliver(Frame{Data: payload, Width: 640, Height: 360}, nil)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// gateSession signals when a decode unit arrives and holds it until released,
// so a completion can be kept in flight while the controller is driven from
// the test goroutine.
type gateSession struct {
	entered chan struct{}
	release chan struct{}
}

func newGateSession() *gateSession {
	return &gateSession{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (s *gateSession) Submit(payload []byte, deliver func(Frame, error)) {
	s.entered <- struct{}{}
	<-s.release
	deliver(Frame{Data: payload, Width: 640, Height: 360}, nil)
}

func (s *gateSession) Close() error { return nil }

// gateDecoder hands out the same gated session on every Establish.
type gateDecoder struct {
	session *gateSession
}

func (d *gateDecoder) Establish(FormatDescriptor) (DecoderSession, error) {
	return d.session, nil
}

// fakeDisplay records presented frames.
type fakeDisplay struct {
	mu     sync.Mutex
	frames []Frame
}

func (d *fakeDisplay) Present(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

// fakeAudio counts control calls.
type fakeAudio struct {
	mu         sync.Mutex
	playCalls  int
	pauseCalls int
	stopCalls  int
	volumes    []float64
	enqueued   int
}

func (a *fakeAudio) Enqueue([]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enqueued++
}

func (a *fakeAudio) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playCalls++
}

func (a *fakeAudio) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauseCalls++
}

func (a *fakeAudio) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopCalls++
}

func (a *fakeAudio) SetVolume(level float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volumes = append(a.volumes, level)
}

func (a *fakeAudio) counts() (play, pause, stop int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playCalls, a.pauseCalls, a.stopCalls
}

// waitUntil polls cond until it is true or the deadline passes.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}
