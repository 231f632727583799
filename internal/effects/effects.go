// Package effects plans the Ken Burns motion applied to each still image.
package effects

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ivlev/audioslides/internal/source"
)

// Default zoom path: start 15% in and pull back to the full frame.
const (
	DefaultStartZoom = 1.15
	DefaultEndZoom   = 1.0
)

var (
	// ErrProbeFailed is returned when the narration length cannot be determined.
	ErrProbeFailed = errors.New("probe failed")
	// ErrInvalidPlan is returned for geometry or zoom settings no plan can satisfy.
	ErrInvalidPlan = errors.New("invalid segment plan")
)

// Prober reports the playable duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// SegmentPlan is the complete, renderer-independent description of one
// animated segment.
type SegmentPlan struct {
	Pair      source.SourcePair
	Width     int
	Height    int
	FPS       int
	Duration  float64
	StartZoom float64
	EndZoom   float64
	Region    Region
	Frames    int
}

// ZoomStep is the per-frame zoom decrement.
func (p SegmentPlan) ZoomStep() float64 {
	if p.Frames <= 1 {
		return 0
	}
	return (p.StartZoom - p.EndZoom) / float64(p.Frames-1)
}

// ZoomAt returns the zoom at a 1-based frame number. The path starts at
// StartZoom, falls linearly and holds at EndZoom from frame Frames onward.
func (p SegmentPlan) ZoomAt(frame int) float64 {
	if frame <= 1 {
		return p.StartZoom
	}
	return math.Max(p.StartZoom-p.ZoomStep()*float64(frame-1), p.EndZoom)
}

// Planner builds SegmentPlans for one output geometry.
type Planner struct {
	Width     int
	Height    int
	FPS       int
	StartZoom float64
	EndZoom   float64

	prober Prober
}

// NewPlanner creates a Planner with the default zoom path.
func NewPlanner(prober Prober, width, height, fps int) *Planner {
	return &Planner{
		Width:     width,
		Height:    height,
		FPS:       fps,
		StartZoom: DefaultStartZoom,
		EndZoom:   DefaultEndZoom,
		prober:    prober,
	}
}

// Plan probes the pair's audio and derives the segment plan. rng must not be
// shared with other goroutines.
func (pl *Planner) Plan(ctx context.Context, pair source.SourcePair, rng *rand.Rand) (SegmentPlan, error) {
	if pl.Width <= 0 || pl.Height <= 0 || pl.FPS <= 0 {
		return SegmentPlan{}, fmt.Errorf("%w: %dx%d@%d", ErrInvalidPlan, pl.Width, pl.Height, pl.FPS)
	}
	if !(pl.StartZoom > pl.EndZoom) || pl.EndZoom < 1 {
		return SegmentPlan{}, fmt.Errorf("%w: zoom %.3f -> %.3f", ErrInvalidPlan, pl.StartZoom, pl.EndZoom)
	}

	duration, err := pl.prober.Duration(ctx, pair.AudioPath)
	if err != nil {
		return SegmentPlan{}, fmt.Errorf("%w: %s: %w", ErrProbeFailed, pair.AudioPath, err)
	}
	if math.IsNaN(duration) || duration <= 0 {
		return SegmentPlan{}, fmt.Errorf("%w: %s: non-positive duration %v", ErrProbeFailed, pair.AudioPath, duration)
	}

	frames := int(math.Round(float64(pl.FPS) * duration))
	if frames < 1 {
		frames = 1
	}

	return SegmentPlan{
		Pair:      pair,
		Width:     pl.Width,
		Height:    pl.Height,
		FPS:       pl.FPS,
		Duration:  duration,
		StartZoom: pl.StartZoom,
		EndZoom:   pl.EndZoom,
		Region:    RandomRegion(rng),
		Frames:    frames,
	}, nil
}

// NewTaskRand derives the generator owned by the task at index.
func NewTaskRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}
