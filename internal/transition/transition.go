// Package transition plans how rendered segments are joined into one video.
package transition

import (
	"errors"
	"fmt"
	"strings"
)

// Type is an ffmpeg xfade transition name.
type Type string

// Supported transitions, in selection order.
const (
	Fade        Type = "fade"
	Dissolve    Type = "dissolve"
	Pixelize    Type = "pixelize"
	SlideLeft   Type = "slideleft"
	SlideRight  Type = "slideright"
	SlideUp     Type = "slideup"
	SlideDown   Type = "slidedown"
	SmoothLeft  Type = "smoothleft"
	SmoothRight Type = "smoothright"
	SmoothUp    Type = "smoothup"
	SmoothDown  Type = "smoothdown"
	FadeBlack   Type = "fadeblack"
	FadeWhite   Type = "fadewhite"
	CircleOpen  Type = "circleopen"
	WipeLeft    Type = "wipeleft"
	WipeRight   Type = "wiperight"
)

var all = []Type{
	Fade, Dissolve, Pixelize,
	SlideLeft, SlideRight, SlideUp, SlideDown,
	SmoothLeft, SmoothRight, SmoothUp, SmoothDown,
	FadeBlack, FadeWhite, CircleOpen,
	WipeLeft, WipeRight,
}

var descriptions = map[Type]string{
	Fade:        "Classic crossfade",
	Dissolve:    "Dissolve",
	Pixelize:    "Pixelated transition",
	SlideLeft:   "Slide from right",
	SlideRight:  "Slide from left",
	SlideUp:     "Slide from bottom",
	SlideDown:   "Slide from top",
	SmoothLeft:  "Smooth slide left",
	SmoothRight: "Smooth slide right",
	SmoothUp:    "Smooth slide up",
	SmoothDown:  "Smooth slide down",
	FadeBlack:   "Fade through black",
	FadeWhite:   "Fade through white",
	CircleOpen:  "Circle reveal",
	WipeLeft:    "Wipe from right",
	WipeRight:   "Wipe from left",
}

var (
	// ErrUnknownTransition is returned for names outside the supported set.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrNoTransitions is returned when exclusions leave nothing to choose from.
	ErrNoTransitions = errors.New("no transitions available after exclusions")
)

// All returns the supported transitions in selection order.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

// Description returns a short human description of t.
func (t Type) Description() string {
	return descriptions[t]
}

// IsSupported reports whether name is a supported transition.
func IsSupported(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// Parse converts a case-insensitive name into a Type.
func Parse(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := descriptions[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, name)
	}
	return t, nil
}

// ParseList parses every name, failing on the first unknown one.
func ParseList(names []string) ([]Type, error) {
	out := make([]Type, 0, len(names))
	for _, n := range names {
		t, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
