package player

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, fetcher Fetcher) (*Handler, *PlaybackController) {
	t.Helper()
	c, _ := newTestController(t, fetcher)
	return NewHandler(c, testLogger(), nil), c
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/player", func(r chi.Router) {
		r.Post("/load", h.Load)
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/stop", h.Stop)
		r.Post("/seek", h.Seek)
		r.Post("/action-at-end", h.ActionAtEnd)
		r.Post("/volume", h.Volume)
		r.Get("/status", h.Status)
	})
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Load(t *testing.T) {
	h, _ := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	rec := postJSON(t, r, "/player/load", map[string]any{"url": string(playlistURL)})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Load_bad_body(t *testing.T) {
	h, _ := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/player/load", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Load_upstream_failure(t *testing.T) {
	h, _ := newTestHandler(t, newFakeFetcher()) // no payloads: fetch fails
	r := newTestRouter(h)

	rec := postJSON(t, r, "/player/load", map[string]any{"url": "http://test/missing.m3u8"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestHandler_Play_without_item(t *testing.T) {
	h, _ := newTestHandler(t, newFakeFetcher())
	r := newTestRouter(h)

	rec := postJSON(t, r, "/player/play", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandler_play_pause_stop(t *testing.T) {
	h, c := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	if rec := postJSON(t, r, "/player/load", map[string]any{"url": string(playlistURL)}); rec.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/play", nil); rec.Code != http.StatusOK {
		t.Errorf("play: expected 200, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/pause", nil); rec.Code != http.StatusOK {
		t.Errorf("pause: expected 200, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/stop", nil); rec.Code != http.StatusOK {
		t.Errorf("stop: expected 200, got %d", rec.Code)
	}
	if st := c.Status(); st.State != "stopped" {
		t.Errorf("expected stopped, got %s", st.State)
	}
}

func TestHandler_Seek(t *testing.T) {
	h, c := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	postJSON(t, r, "/player/load", map[string]any{"url": string(playlistURL)})

	rec := postJSON(t, r, "/player/seek", map[string]any{"time": 5.0})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if st := c.Status(); st.CurrentSegmentIndex != 1 {
		t.Errorf("expected index 1 after seek(5.0), got %d", st.CurrentSegmentIndex)
	}

	if rec := postJSON(t, r, "/player/seek", map[string]any{"time": -1.0}); rec.Code != http.StatusBadRequest {
		t.Errorf("negative seek: expected 400, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/seek", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing time: expected 400, got %d", rec.Code)
	}
}

func TestHandler_ActionAtEnd(t *testing.T) {
	h, _ := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	if rec := postJSON(t, r, "/player/action-at-end", map[string]any{"action": "loop"}); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/action-at-end", map[string]any{"action": "rewind"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: expected 400, got %d", rec.Code)
	}
}

func TestHandler_Volume(t *testing.T) {
	h, _ := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	if rec := postJSON(t, r, "/player/volume", map[string]any{"level": 0.5}); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/player/volume", map[string]any{"level": 1.5}); rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range level: expected 400, got %d", rec.Code)
	}
}

func TestHandler_Status(t *testing.T) {
	h, _ := newTestHandler(t, threeSegmentFetcher())
	r := newTestRouter(h)

	postJSON(t, r, "/player/load", map[string]any{"url": string(playlistURL), "quality": 0})

	req := httptest.NewRequest(http.MethodGet, "/player/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "idle" || st.SegmentCount != 3 || st.ItemStatus != "ready_to_play" {
		t.Errorf("unexpected status: %+v", st)
	}
}
