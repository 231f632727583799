package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/transition"
	"github.com/ivlev/audioslides/internal/video"
)

var errBoom = errors.New("boom")

// fakeGateway stands in for ffmpeg. Durations are keyed by pair index and
// used both for the narration and the rendered segment.
type fakeGateway struct {
	mu sync.Mutex

	durations   map[int]float64
	failRender  map[int]bool
	delays      map[int]time.Duration
	failMerge   bool
	renderCalls map[int]int
	inFlight    int
	maxInFlight int
	merged      *transition.Plan
	copied      bool
}

func newFakeGateway(durations map[int]float64) *fakeGateway {
	return &fakeGateway{
		durations:   durations,
		failRender:  map[int]bool{},
		delays:      map[int]time.Duration{},
		renderCalls: map[int]int{},
	}
}

func indexFromPath(path string) int {
	base := filepath.Base(path)
	var idx int
	for _, prefix := range []string{"audio_", "segment_"} {
		if strings.HasPrefix(base, prefix) {
			fmt.Sscanf(strings.TrimPrefix(base, prefix), "%d", &idx)
			return idx
		}
	}
	return -1
}

func (g *fakeGateway) Duration(_ context.Context, path string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.durations[indexFromPath(path)]
	if !ok {
		return 0, fmt.Errorf("%w: no duration for %s", video.ErrProbe, path)
	}
	return d, nil
}

func (g *fakeGateway) RenderSegment(_ context.Context, plan effects.SegmentPlan, out string) (string, error) {
	idx := plan.Pair.Index

	g.mu.Lock()
	g.renderCalls[idx]++
	g.inFlight++
	g.maxInFlight = max(g.maxInFlight, g.inFlight)
	delay := g.delays[idx]
	fail := g.failRender[idx]
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	time.Sleep(delay)
	if fail {
		return "", &video.RenderError{Index: idx, Err: errBoom}
	}
	if err := os.WriteFile(out, []byte("segment"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (g *fakeGateway) MergeSegments(_ context.Context, segments []video.RenderedSegment, plan transition.Plan, out string) (string, error) {
	g.mu.Lock()
	g.merged = &plan
	g.mu.Unlock()

	for _, s := range segments {
		if _, err := os.Stat(s.Path); err != nil {
			return "", &video.MergeError{Output: out, Err: err}
		}
	}
	// ffmpeg creates the output before failing.
	if err := os.WriteFile(out, []byte("merged"), 0o644); err != nil {
		return "", err
	}
	if g.failMerge {
		return "", &video.MergeError{Output: out, Err: errBoom}
	}
	return out, nil
}

func (g *fakeGateway) CopySegment(_ context.Context, segment video.RenderedSegment, out string) (string, error) {
	g.mu.Lock()
	g.copied = true
	g.mu.Unlock()

	data, err := os.ReadFile(segment.Path)
	if err != nil {
		return "", &video.MergeError{Output: out, Err: err}
	}
	return out, os.WriteFile(out, data, 0o644)
}

func (g *fakeGateway) calls(idx int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renderCalls[idx]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.renderCalls {
		n += c
	}
	return n
}
