package transition

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// DefaultSafetyMargin is subtracted from every offset so a transition never
// starts on the very last frame of the clip it leaves.
const DefaultSafetyMargin = 0.05

var (
	// ErrTooFewSegments is returned when fewer than two segments are given.
	ErrTooFewSegments = errors.New("at least 2 segments are required for transitions")
	// ErrTransitionTooLong is returned when a segment cannot hold the transition.
	ErrTransitionTooLong = errors.New("transition longer than segment")
	// ErrInvalidDuration is returned for a non-positive transition duration.
	ErrInvalidDuration = errors.New("transition duration must be positive")
)

// TooLongError names the segment that is too short for the transition.
type TooLongError struct {
	Index    int
	Duration float64
	Required float64
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("%v: segment %03d lasts %.3fs, needs at least %.3fs",
		ErrTransitionTooLong, e.Index, e.Duration, e.Required)
}

func (e *TooLongError) Unwrap() error { return ErrTransitionTooLong }

// Segment is the part of a rendered segment the planner needs.
type Segment struct {
	Index    int
	Duration float64
}

// Entry describes the join between segment From and segment To.
type Entry struct {
	Boundary   int
	From       int
	To         int
	Transition Type
	Offset     float64
	Duration   float64
	AudioJoin  Policy
}

// Plan is the full concatenation graph. It carries no ffmpeg syntax.
type Plan struct {
	Entries            []Entry
	Policy             Policy
	TransitionDuration float64
	SafetyMargin       float64
	// VideoDuration and AudioDuration are the expected lengths of the merged streams.
	VideoDuration float64
	AudioDuration float64
}

// Planner picks transitions and computes xfade offsets. It is not safe for
// concurrent use.
type Planner struct {
	choices []Type
	fixed   Type
	margin  float64
	rng     *rand.Rand
}

// Option configures a Planner.
type Option func(*Planner) error

// WithExclude removes transitions from random selection.
func WithExclude(excluded ...Type) Option {
	return func(p *Planner) error {
		for _, t := range excluded {
			if _, ok := descriptions[t]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownTransition, t)
			}
		}
		p.choices = slices.DeleteFunc(p.choices, func(t Type) bool {
			return slices.Contains(excluded, t)
		})
		if len(p.choices) == 0 {
			return ErrNoTransitions
		}
		return nil
	}
}

// WithFixed uses t at every boundary instead of a random choice.
func WithFixed(t Type) Option {
	return func(p *Planner) error {
		if _, ok := descriptions[t]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTransition, t)
		}
		p.fixed = t
		return nil
	}
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(seconds float64) Option {
	return func(p *Planner) error {
		if math.IsNaN(seconds) || seconds < 0 {
			return fmt.Errorf("safety margin must not be negative, got %v", seconds)
		}
		p.margin = seconds
		return nil
	}
}

// WithRand sets the generator used for random selection.
func WithRand(rng *rand.Rand) Option {
	return func(p *Planner) error {
		p.rng = rng
		return nil
	}
}

// NewPlanner creates a Planner choosing uniformly among all transitions.
func NewPlanner(opts ...Option) (*Planner, error) {
	p := &Planner{
		choices: All(),
		margin:  DefaultSafetyMargin,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return p, nil
}

// Choices returns the transitions random selection draws from.
func (p *Planner) Choices() []Type {
	if p.fixed != "" {
		return []Type{p.fixed}
	}
	return slices.Clone(p.choices)
}

// Plan computes one entry per boundary. segments must be in playback order
// and carry their real rendered durations.
func (p *Planner) Plan(segments []Segment, transitionDuration float64, policy Policy) (Plan, error) {
	if len(segments) < 2 {
		return Plan{}, fmt.Errorf("%w: got %d", ErrTooFewSegments, len(segments))
	}
	if math.IsNaN(transitionDuration) || transitionDuration <= 0 {
		return Plan{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, transitionDuration)
	}
	if err := policy.Validate(); err != nil {
		return Plan{}, err
	}

	required := transitionDuration + p.margin
	total := 0.0
	for _, s := range segments {
		if s.Duration < required {
			return Plan{}, &TooLongError{Index: s.Index, Duration: s.Duration, Required: required}
		}
		total += s.Duration
	}

	boundaries := len(segments) - 1
	entries := make([]Entry, 0, boundaries)
	cumulative := segments[0].Duration
	for i := 0; i < boundaries; i++ {
		offset := cumulative - transitionDuration - p.margin
		if offset < 0 {
			return Plan{}, &TooLongError{Index: segments[i].Index, Duration: segments[i].Duration, Required: required}
		}
		entries = append(entries, Entry{
			Boundary:   i,
			From:       segments[i].Index,
			To:         segments[i+1].Index,
			Transition: p.pick(),
			Offset:     offset,
			Duration:   transitionDuration,
			AudioJoin:  policy,
		})
		cumulative += segments[i+1].Duration - transitionDuration
	}

	return Plan{
		Entries:            entries,
		Policy:             policy,
		TransitionDuration: transitionDuration,
		SafetyMargin:       p.margin,
		VideoDuration:      total - float64(boundaries)*transitionDuration,
		AudioDuration:      total + float64(boundaries)*policy.audioDelta(),
	}, nil
}

func (p *Planner) pick() Type {
	if p.fixed != "" {
		return p.fixed
	}
	return p.choices[p.rng.IntN(len(p.choices))]
}
