package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-player/internal/platform/config"
	"hls-player/internal/platform/logger"
	"hls-player/internal/platform/metrics"
	"hls-player/internal/player"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	fetchTimeout := config.GetEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	emptyAfterFailures := config.GetEnvInt("BUFFER_EMPTY_AFTER_FAILURES", player.DefaultEmptyAfterFailures)
	fullAfterSeconds := config.GetEnvFloat("BUFFER_FULL_AFTER_SECONDS", player.DefaultFullAfterSeconds)
	resetInterval := config.GetEnvDuration("BUFFER_RESET_INTERVAL", player.DefaultResetInterval)
	actionAtEnd := config.GetEnv("ACTION_AT_ITEM_END", "pause")

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	monitor := player.NewBufferMonitor(emptyAfterFailures, fullAfterSeconds, resetInterval)
	fetcher := player.NewHTTPFetcher(fetchTimeout)
	audio := player.NewSilentAudio()

	// Decode and presentation run against placeholder collaborators; real
	// decoder and display capabilities plug in through the same interfaces.
	ctrl := player.NewPlaybackController(fetcher, player.LoopbackDecoder{}, player.DiscardDisplay{}, audio, monitor, log, met)
	defer ctrl.Close()

	if action, err := player.ParseActionAtItemEnd(actionAtEnd); err == nil {
		ctrl.SetActionAtItemEnd(action)
	} else {
		log.Warn("invalid ACTION_AT_ITEM_END, using pause", "value", actionAtEnd)
	}

	ctrl.Subscribe(func(ev player.Event) {
		log.Info("player event", "kind", ev.Kind.String(), "message", ev.Message)
	})

	h := player.NewHandler(ctrl, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { ctrl.CheckBuffer() }).ServeHTTP(w, req)
	})
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

	srv := &http.Server{Addr: ":" + port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			"port", port,
			"action_at_item_end", actionAtEnd,
			"log_level", logLevel,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
