package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback engine.
type Metrics struct {
	registry                  *prometheus.Registry
	requestsTotal             prometheus.Counter
	segmentsFetchedTotal      prometheus.Counter
	segmentFetchFailuresTotal prometheus.Counter
	decodeFailuresTotal       prometheus.Counter
	loadFailuresTotal         prometheus.Counter
	playbacksStartedTotal     prometheus.Counter
	itemsEndedTotal           prometheus.Counter
	errorsTotal               prometheus.Counter
	bufferEmpty               prometheus.Gauge
	likelyToKeepUp            prometheus.Gauge
	bufferFull                prometheus.Gauge
}

// New creates and registers Prometheus metrics for the playback engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_requests_total",
		Help: "Total number of HTTP requests received on the control API",
	})
	segmentsFetchedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_segments_fetched_total",
		Help: "Total number of media segments fetched successfully",
	})
	segmentFetchFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_segment_fetch_failures_total",
		Help: "Total number of media segment fetches that failed",
	})
	decodeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_decode_failures_total",
		Help: "Total number of decode units that failed",
	})
	loadFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_item_load_failures_total",
		Help: "Total number of item loads that failed",
	})
	playbacksStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_playbacks_started_total",
		Help: "Total number of times playback was started",
	})
	itemsEndedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_items_ended_total",
		Help: "Total number of times an item reached the end of its segment list",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	bufferEmpty := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "player_buffer_empty",
		Help: "1 when the buffer-empty flag is set, 0 otherwise",
	})
	likelyToKeepUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "player_likely_to_keep_up",
		Help: "1 when playback is likely to keep up, 0 otherwise",
	})
	bufferFull := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "player_buffer_full",
		Help: "1 when the buffer-full flag is set, 0 otherwise",
	})

	registry.MustRegister(
		requestsTotal,
		segmentsFetchedTotal,
		segmentFetchFailuresTotal,
		decodeFailuresTotal,
		loadFailuresTotal,
		playbacksStartedTotal,
		itemsEndedTotal,
		errorsTotal,
		bufferEmpty,
		likelyToKeepUp,
		bufferFull,
	)

	return &Metrics{
		registry:                  registry,
		requestsTotal:             requestsTotal,
		segmentsFetchedTotal:      segmentsFetchedTotal,
		segmentFetchFailuresTotal: segmentFetchFailuresTotal,
		decodeFailuresTotal:       decodeFailuresTotal,
		loadFailuresTotal:         loadFailuresTotal,
		playbacksStartedTotal:     playbacksStartedTotal,
		itemsEndedTotal:           itemsEndedTotal,
		errorsTotal:               errorsTotal,
		bufferEmpty:               bufferEmpty,
		likelyToKeepUp:            likelyToKeepUp,
		bufferFull:                bufferFull,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSegmentsFetched increments the successful segment fetch counter.
func (m *Metrics) IncSegmentsFetched() {
	m.segmentsFetchedTotal.Inc()
}

// IncSegmentFetchFailures increments the failed segment fetch counter.
func (m *Metrics) IncSegmentFetchFailures() {
	m.segmentFetchFailuresTotal.Inc()
}

// IncDecodeFailures increments the decode failure counter.
func (m *Metrics) IncDecodeFailures() {
	m.decodeFailuresTotal.Inc()
}

// IncLoadFailures increments the item load failure counter.
func (m *Metrics) IncLoadFailures() {
	m.loadFailuresTotal.Inc()
}

// IncPlaybacksStarted increments the playback started counter.
func (m *Metrics) IncPlaybacksStarted() {
	m.playbacksStartedTotal.Inc()
}

// IncItemsEnded increments the item ended counter.
func (m *Metrics) IncItemsEnded() {
	m.itemsEndedTotal.Inc()
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetBufferFlags publishes the three buffering signals as 0/1 gauges.
func (m *Metrics) SetBufferFlags(empty, likelyToKeepUp, full bool) {
	m.bufferEmpty.Set(boolGauge(empty))
	m.likelyToKeepUp.Set(boolGauge(likelyToKeepUp))
	m.bufferFull.Set(boolGauge(full))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// the buffering flags).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
