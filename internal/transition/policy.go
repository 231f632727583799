package transition

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// JoinKind selects how consecutive narration tracks are joined.
type JoinKind string

const (
	// JoinGap inserts silence between clips.
	JoinGap JoinKind = "gap"
	// JoinCrossfade overlaps clips by the transition duration.
	JoinCrossfade JoinKind = "crossfade"
	// JoinNone plays clips back to back.
	JoinNone JoinKind = "none"
)

// ErrInvalidPolicy is returned for an unknown join kind or a bad gap length.
var ErrInvalidPolicy = errors.New("invalid audio join policy")

// Policy is the audio join applied at every boundary of a run.
type Policy struct {
	Kind JoinKind
	// Seconds is the silence length for JoinGap and the overlap for JoinCrossfade.
	Seconds float64
}

// Gap joins clips with seconds of silence.
func Gap(seconds float64) Policy { return Policy{Kind: JoinGap, Seconds: seconds} }

// Crossfade overlaps clips for the transition duration.
func Crossfade(transitionDuration float64) Policy {
	return Policy{Kind: JoinCrossfade, Seconds: transitionDuration}
}

// NoJoin concatenates clips directly.
func NoJoin() Policy { return Policy{Kind: JoinNone} }

// ParsePolicy builds a Policy from configuration values.
func ParsePolicy(mode string, gapSeconds, transitionDuration float64) (Policy, error) {
	var p Policy
	switch JoinKind(strings.ToLower(mode)) {
	case JoinGap:
		p = Gap(gapSeconds)
	case JoinCrossfade:
		p = Crossfade(transitionDuration)
	case JoinNone:
		p = NoJoin()
	default:
		return Policy{}, fmt.Errorf("%w: mode %q", ErrInvalidPolicy, mode)
	}
	return p, p.Validate()
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	switch p.Kind {
	case JoinGap, JoinCrossfade:
		if math.IsNaN(p.Seconds) || p.Seconds <= 0 {
			return fmt.Errorf("%w: %s needs a positive length, got %v", ErrInvalidPolicy, p.Kind, p.Seconds)
		}
	case JoinNone:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidPolicy, p.Kind)
	}
	return nil
}

func (p Policy) String() string {
	if p.Kind == JoinNone {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s(%.2fs)", p.Kind, p.Seconds)
}

// audioDelta is how much one boundary changes the total audio length.
func (p Policy) audioDelta() float64 {
	switch p.Kind {
	case JoinGap:
		return p.Seconds
	case JoinCrossfade:
		return -p.Seconds
	default:
		return 0
	}
}
