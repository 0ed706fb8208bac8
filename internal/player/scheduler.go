package player

import (
	"context"
	"log/slog"
)

// SegmentScheduler fetches segment payloads by index and hands them to the
// decode pipeline. It holds no queue of in-flight requests; call sites issue
// one fetch at a time. There is no retry: a failed fetch is reported once
// through onComplete and the segment is effectively skipped.
type SegmentScheduler struct {
	fetcher  Fetcher
	pipeline *DecodePipeline
	monitor  *BufferMonitor
	log      *slog.Logger

	// onComplete is invoked after every fetch attempt, successful or not,
	// unless ctx was canceled first. It receives the ctx the fetch was
	// issued under, so the call site can drop completions whose item is no
	// longer current. err is nil on success.
	onComplete func(ctx context.Context, index int, err error)
}

// NewSegmentScheduler wires a scheduler to its fetcher, pipeline and buffer
// monitor. onComplete may be nil.
func NewSegmentScheduler(fetcher Fetcher, pipeline *DecodePipeline, monitor *BufferMonitor, log *slog.Logger, onComplete func(context.Context, int, error)) *SegmentScheduler {
	return &SegmentScheduler{
		fetcher:    fetcher,
		pipeline:   pipeline,
		monitor:    monitor,
		log:        log,
		onComplete: onComplete,
	}
}

// LoadSegment asynchronously fetches the segment at index. Out-of-range
// indexes are a no-op. On success the payload goes to the decode pipeline
// and the buffered duration grows by the segment's duration; on failure the
// failure counter grows and state is otherwise unchanged. A fetch completing
// after ctx is canceled is dropped entirely, so a replaced or stopped item
// is never mutated by a late callback.
func (s *SegmentScheduler) LoadSegment(ctx context.Context, segments []Segment, index int) {
	if index < 0 || index >= len(segments) {
		return
	}
	seg := segments[index]

	go func() {
		payload, err := s.fetcher.Fetch(ctx, seg.URL)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.monitor.RecordResult(false)
			s.log.Debug("segment fetch failed",
				slog.Int("index", index),
				slog.String("url", string(seg.URL)),
				slog.String("error", err.Error()))
			if s.onComplete != nil {
				s.onComplete(ctx, index, err)
			}
			return
		}

		s.monitor.RecordResult(true)
		s.monitor.AddBuffered(seg.Duration)
		s.pipeline.Decode(ctx, payload)

		s.log.Debug("segment fetched",
			slog.Int("index", index),
			slog.Int("bytes", len(payload)))
		if s.onComplete != nil {
			s.onComplete(ctx, index, nil)
		}
	}()
}
