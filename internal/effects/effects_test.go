package effects

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/audioslides/internal/source"
)

type stubProber struct {
	duration float64
	err      error
}

func (s stubProber) Duration(context.Context, string) (float64, error) {
	return s.duration, s.err
}

var testPair = source.SourcePair{Index: 1, ImagePath: "image_001.jpg", AudioPath: "audio_001.mp3"}

func TestPlanner_Plan(t *testing.T) {
	tests := []struct {
		name       string
		duration   float64
		fps        int
		wantFrames int
	}{
		{"whole seconds", 4.0, 30, 120},
		{"rounds to nearest frame", 2.51, 30, 75},
		{"tiny clip keeps one frame", 0.001, 30, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := NewPlanner(stubProber{duration: tt.duration}, 1920, 1080, tt.fps)

			plan, err := pl.Plan(context.Background(), testPair, NewTaskRand(1, testPair.Index))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrames, plan.Frames)
			assert.Equal(t, tt.duration, plan.Duration)
			assert.Equal(t, DefaultStartZoom, plan.StartZoom)
			assert.Equal(t, DefaultEndZoom, plan.EndZoom)
			assert.True(t, plan.Region.Valid())
			assert.Equal(t, testPair, plan.Pair)
		})
	}
}

func TestPlanner_ProbeFailures(t *testing.T) {
	tests := []struct {
		name   string
		prober stubProber
	}{
		{"probe error", stubProber{err: errors.New("corrupt header")}},
		{"zero duration", stubProber{duration: 0}},
		{"negative duration", stubProber{duration: -1}},
		{"nan duration", stubProber{duration: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := NewPlanner(tt.prober, 1920, 1080, 30)
			_, err := pl.Plan(context.Background(), testPair, NewTaskRand(1, 1))
			assert.ErrorIs(t, err, ErrProbeFailed)
		})
	}
}

func TestPlanner_RejectsInvalidSettings(t *testing.T) {
	pl := NewPlanner(stubProber{duration: 3}, 1920, 1080, 30)
	pl.StartZoom, pl.EndZoom = 1.0, 1.0
	_, err := pl.Plan(context.Background(), testPair, NewTaskRand(1, 1))
	assert.ErrorIs(t, err, ErrInvalidPlan)

	pl = NewPlanner(stubProber{duration: 3}, 0, 1080, 30)
	_, err = pl.Plan(context.Background(), testPair, NewTaskRand(1, 1))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestPlanner_SameSeedSameRegion(t *testing.T) {
	pl := NewPlanner(stubProber{duration: 3}, 1920, 1080, 30)

	a, err := pl.Plan(context.Background(), testPair, NewTaskRand(42, 7))
	require.NoError(t, err)
	b, err := pl.Plan(context.Background(), testPair, NewTaskRand(42, 7))
	require.NoError(t, err)
	assert.Equal(t, a.Region, b.Region)
}

func TestSegmentPlan_ZoomPath(t *testing.T) {
	plan := SegmentPlan{StartZoom: 1.15, EndZoom: 1.0, Frames: 90}

	assert.Equal(t, 1.15, plan.ZoomAt(0))
	assert.Equal(t, 1.15, plan.ZoomAt(1))
	assert.InDelta(t, 1.0, plan.ZoomAt(90), 1e-9)
	assert.Equal(t, 1.0, plan.ZoomAt(91))
	assert.Equal(t, 1.0, plan.ZoomAt(1000))

	prev := plan.ZoomAt(1)
	for frame := 2; frame <= 120; frame++ {
		z := plan.ZoomAt(frame)
		assert.LessOrEqual(t, z, prev, "frame %d", frame)
		assert.GreaterOrEqual(t, z, plan.EndZoom)
		prev = z
	}
}

func TestSegmentPlan_SingleFrame(t *testing.T) {
	plan := SegmentPlan{StartZoom: 1.15, EndZoom: 1.0, Frames: 1}
	assert.Equal(t, 0.0, plan.ZoomStep())
	assert.Equal(t, 1.15, plan.ZoomAt(1))
}

func TestRegion_OriginStaysInside(t *testing.T) {
	const w, h = 1920.0, 1080.0
	for _, r := range Regions {
		for _, zoom := range []float64{1.0, 1.05, 1.15, 2.0} {
			x, y := r.Origin(w, h, zoom)
			assert.GreaterOrEqual(t, x, 0.0, "%s x at %.2f", r, zoom)
			assert.GreaterOrEqual(t, y, 0.0, "%s y at %.2f", r, zoom)
			assert.LessOrEqual(t, x+w/zoom, w+1e-9, "%s right edge at %.2f", r, zoom)
			assert.LessOrEqual(t, y+h/zoom, h+1e-9, "%s bottom edge at %.2f", r, zoom)
		}
	}
}

func TestRegion_CenterIsCentred(t *testing.T) {
	x, y := RegionCenter.Origin(1000, 500, 2)
	assert.InDelta(t, 250, x, 1e-9)
	assert.InDelta(t, 125, y, 1e-9)
}

func TestRandomRegion_CoversAll(t *testing.T) {
	rng := NewTaskRand(3, 0)
	seen := map[Region]bool{}
	for i := 0; i < 1000; i++ {
		seen[RandomRegion(rng)] = true
	}
	assert.Len(t, seen, len(Regions))
}
