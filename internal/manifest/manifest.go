// Package manifest records what a run produced: one entry per segment and
// per transition, written as YAML next to the output.
package manifest

import (
	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/transition"
	"github.com/ivlev/audioslides/internal/video"
)

// Version of the manifest layout.
const Version = "1.0"

// Manifest describes a complete run
type Manifest struct {
	Version       string       `yaml:"version"`
	RunID         string       `yaml:"run_id"`
	Seed          uint64       `yaml:"seed"`
	Output        string       `yaml:"output"`
	Video         Geometry     `yaml:"video"`
	AudioJoin     string       `yaml:"audio_join"`
	VideoDuration float64      `yaml:"video_duration"`
	AudioDuration float64      `yaml:"audio_duration"`
	Segments      []Segment    `yaml:"segments"`
	Transitions   []Transition `yaml:"transitions,omitempty"`
}

// Geometry is the output frame format
type Geometry struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// Segment is one rendered image/audio pair
type Segment struct {
	Index     int     `yaml:"index"`
	Image     string  `yaml:"image"`
	Audio     string  `yaml:"audio"`
	Region    string  `yaml:"region"`
	StartZoom float64 `yaml:"start_zoom"`
	EndZoom   float64 `yaml:"end_zoom"`
	Frames    int     `yaml:"frames"`
	Duration  float64 `yaml:"duration"` // Measured from the rendered file
}

// Transition is the join between two segments
type Transition struct {
	From     int     `yaml:"from"`
	To       int     `yaml:"to"`
	Type     string  `yaml:"type"`
	Offset   float64 `yaml:"offset"`
	Duration float64 `yaml:"duration"`
}

// Build assembles a manifest. plans and segments must be in the same order;
// plan is nil for single-segment runs.
func Build(runID string, seed uint64, output string, plans []effects.SegmentPlan, segments []video.RenderedSegment, plan *transition.Plan) *Manifest {
	m := &Manifest{
		Version:  Version,
		RunID:    runID,
		Seed:     seed,
		Output:   output,
		Segments: make([]Segment, 0, len(plans)),
	}
	if len(plans) > 0 {
		m.Video = Geometry{Width: plans[0].Width, Height: plans[0].Height, FPS: plans[0].FPS}
	}

	total := 0.0
	for i, p := range plans {
		seg := Segment{
			Index:     p.Pair.Index,
			Image:     p.Pair.ImagePath,
			Audio:     p.Pair.AudioPath,
			Region:    string(p.Region),
			StartZoom: p.StartZoom,
			EndZoom:   p.EndZoom,
			Frames:    p.Frames,
			Duration:  p.Duration,
		}
		if i < len(segments) {
			seg.Duration = segments[i].Duration
		}
		total += seg.Duration
		m.Segments = append(m.Segments, seg)
	}

	if plan == nil {
		m.AudioJoin = string(transition.JoinNone)
		m.VideoDuration = total
		m.AudioDuration = total
		return m
	}

	m.AudioJoin = plan.Policy.String()
	m.VideoDuration = plan.VideoDuration
	m.AudioDuration = plan.AudioDuration
	for _, e := range plan.Entries {
		m.Transitions = append(m.Transitions, Transition{
			From:     e.From,
			To:       e.To,
			Type:     string(e.Transition),
			Offset:   e.Offset,
			Duration: e.Duration,
		})
	}
	return m
}
