package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/video"
)

// Scheduler renders segment plans on a bounded pool of workers.
//
// Plans are submitted in order. Once any render fails no further plan is
// started; renders already running are allowed to finish. The error
// reported is the failure with the lowest position, independent of
// completion order. Nothing is retried.
type Scheduler struct {
	gateway     video.Gateway
	dir         string
	concurrency int
	observer    Observer
}

// NewScheduler creates a Scheduler writing segments into dir. concurrency
// below 1 means one worker per logical CPU.
func NewScheduler(gateway video.Gateway, dir string, concurrency int, observer Observer) *Scheduler {
	if concurrency < 1 {
		concurrency = system.DefaultWorkers()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Scheduler{gateway: gateway, dir: dir, concurrency: concurrency, observer: observer}
}

// SegmentPath is where the segment for index is written.
func (s *Scheduler) SegmentPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("segment_%03d.mp4", index))
}

// Run renders every plan and returns the segments in plan order.
func (s *Scheduler) Run(ctx context.Context, plans []effects.SegmentPlan) ([]video.RenderedSegment, error) {
	if len(plans) == 0 {
		return nil, nil
	}

	results := make([]video.RenderedSegment, len(plans))
	errs := make([]error, len(plans))

	var (
		failed atomic.Bool
		mu     sync.Mutex
	)
	notify := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	slots := make(chan struct{}, min(s.concurrency, len(plans)))
	var g errgroup.Group

	for i, plan := range plans {
		slots <- struct{}{}
		// Checked after waiting for a slot: a render may have failed meanwhile.
		if failed.Load() {
			<-slots
			break
		}
		g.Go(func() error {
			defer func() { <-slots }()

			idx := plan.Pair.Index
			notify(func() { s.observer.SegmentStarted(idx, len(plans)) })

			seg, err := s.renderOne(ctx, plan)
			if err != nil {
				errs[i] = err
				failed.Store(true)
				notify(func() { s.observer.SegmentFailed(idx, err) })
				return nil
			}
			results[i] = seg
			notify(func() { s.observer.SegmentRendered(seg) })
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		stage := StageRender
		if errors.Is(err, video.ErrProbe) {
			stage = StageProbe
		}
		return nil, &StageError{Stage: stage, Index: plans[i].Pair.Index, Err: err}
	}
	return results, nil
}

func (s *Scheduler) renderOne(ctx context.Context, plan effects.SegmentPlan) (video.RenderedSegment, error) {
	path, err := s.gateway.RenderSegment(ctx, plan, s.SegmentPath(plan.Pair.Index))
	if err != nil {
		return video.RenderedSegment{}, err
	}
	d, err := s.gateway.Duration(ctx, path)
	if err != nil {
		return video.RenderedSegment{}, err
	}
	return video.RenderedSegment{Index: plan.Pair.Index, Path: path, Duration: d}, nil
}
