package player

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hls-player/internal/platform/metrics"
)

// Handler exposes the playback control surface over HTTP using go-chi.
type Handler struct {
	ctrl    *PlaybackController
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler driving the given controller. Metrics may be
// nil to disable metric recording (e.g. in tests).
func NewHandler(ctrl *PlaybackController, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{ctrl: ctrl, log: log, metrics: m}
}

// Load handles POST /player/load.
// Body: { "url": "http://host/playlist.m3u8", "quality": 2 } — quality is
// optional; absent means automatic selection.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL     string `json:"url"`
		Quality *int   `json:"quality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var q Quality
	if body.Quality != nil {
		q = Quality{Explicit: true, Index: *body.Quality}
	}

	if err := h.ctrl.Load(Locator(body.URL), q); err != nil {
		// Load failures surface to the caller; the item is already marked
		// failed and the error logged.
		h.log.Info("load rejected", slog.String("url", body.URL), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Play handles POST /player/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Play(); err != nil {
		h.writeControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Pause handles POST /player/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Pause(); err != nil {
		h.writeControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Stop handles POST /player/stop.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	_ = h.ctrl.Stop()
	w.WriteHeader(http.StatusOK)
}

// Seek handles POST /player/seek. Body: { "time": 5.0 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Time *float64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Time == nil || *body.Time < 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.ctrl.Seek(*body.Time); err != nil {
		h.writeControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ActionAtEnd handles POST /player/action-at-end.
// Body: { "action": "pause" | "stop" | "loop" }.
func (h *Handler) ActionAtEnd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	action, err := ParseActionAtItemEnd(body.Action)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.ctrl.SetActionAtItemEnd(action)
	w.WriteHeader(http.StatusOK)
}

// Volume handles POST /player/volume. Body: { "level": 0.5 }.
func (h *Handler) Volume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level *float64 `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Level == nil || *body.Level < 0 || *body.Level > 1 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.ctrl.SetVolume(*body.Level)
	w.WriteHeader(http.StatusOK)
}

// Status handles GET /player/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.ctrl.Status())
}

func (h *Handler) writeControlError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoItem) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	h.log.Error("control call failed", slog.String("error", err.Error()))
	w.WriteHeader(http.StatusInternalServerError)
}
