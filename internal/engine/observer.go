package engine

import (
	"log/slog"

	"github.com/ivlev/audioslides/internal/video"
)

// Observer receives scheduler progress. Calls are serialised, so
// implementations need no locking of their own.
type Observer interface {
	SegmentStarted(index, total int)
	SegmentRendered(segment video.RenderedSegment)
	SegmentFailed(index int, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) SegmentStarted(int, int)               {}
func (NopObserver) SegmentRendered(video.RenderedSegment) {}
func (NopObserver) SegmentFailed(int, error)              {}

// LogObserver reports progress as log lines.
type LogObserver struct {
	Logger *slog.Logger

	total int
	done  int
}

func (o *LogObserver) SegmentStarted(index, total int) {
	o.total = total
	o.Logger.Debug("rendering segment", slog.Int("index", index))
}

func (o *LogObserver) SegmentRendered(s video.RenderedSegment) {
	o.done++
	o.Logger.Info("segment ready",
		slog.Int("index", s.Index),
		slog.Float64("duration", s.Duration),
		slog.Int("done", o.done),
		slog.Int("total", o.total),
	)
}

func (o *LogObserver) SegmentFailed(index int, err error) {
	o.Logger.Error("segment failed", slog.Int("index", index), slog.Any("error", err))
}
