// Package renderer serialises typed segment and concatenation plans into
// ffmpeg filter syntax. Nothing outside this package builds filter strings.
package renderer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/transition"
)

// prescale enlarges the still before zoompan so sub-pixel pans stay smooth.
const prescale = "scale=-2:ih*10"

// FinalVideoLabel and FinalAudioLabel are the output pads of ConcatFilter.
const (
	FinalVideoLabel = "[final_video]"
	FinalAudioLabel = "[final_audio]"
)

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ZoomExpr is the zoompan z expression for the plan's zoom path. zoompan
// counts output frames from 1 via "on".
func ZoomExpr(p effects.SegmentPlan) string {
	return fmt.Sprintf("if(lte(on,1),%s,max(%s-%s*(on-1),%s))",
		num(p.StartZoom), num(p.StartZoom), num(p.ZoomStep()), num(p.EndZoom))
}

// PanExpr returns the x and y expressions keeping the window on the plan's
// region, clamped to the input bounds.
func PanExpr(p effects.SegmentPlan) (x, y string) {
	fx, fy := p.Region.Focus()
	return axisExpr("iw", fx), axisExpr("ih", fy)
}

func axisExpr(size string, focus float64) string {
	window := size + "/zoom"
	pos := fmt.Sprintf("%s*%s-%s/2", size, num(focus), window)
	return fmt.Sprintf("min(max(%s,0),%s-%s)", pos, size, window)
}

// ZoomPanFilter builds the -vf chain for one Ken Burns segment.
func ZoomPanFilter(p effects.SegmentPlan) string {
	x, y := PanExpr(p)
	return fmt.Sprintf("%s,zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		prescale, ZoomExpr(p), x, y, p.Frames, p.Width, p.Height, p.FPS)
}

// ConcatFilter builds the -filter_complex graph joining n inputs according
// to plan. Inputs are addressed as [i:v] and [i:a] in plan order.
func ConcatFilter(plan transition.Plan) (string, error) {
	n := len(plan.Entries) + 1
	if n < 2 {
		return "", transition.ErrTooFewSegments
	}

	parts := videoChain(plan)
	audio, err := audioChain(n, plan.Policy)
	if err != nil {
		return "", err
	}
	parts = append(parts, audio...)
	return strings.Join(parts, ";"), nil
}

func videoChain(plan transition.Plan) []string {
	out := make([]string, 0, len(plan.Entries))
	prev := "[0:v]"
	for i, e := range plan.Entries {
		label := fmt.Sprintf("[v%d]", i)
		if i == len(plan.Entries)-1 {
			label = FinalVideoLabel
		}
		out = append(out, fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%s:offset=%s%s",
			prev, i+1, e.Transition, num(e.Duration), num(e.Offset), label))
		prev = label
	}
	return out
}

func audioChain(n int, policy transition.Policy) ([]string, error) {
	switch policy.Kind {
	case transition.JoinNone:
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[%d:a]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=0:a=1%s", n, FinalAudioLabel)
		return []string{b.String()}, nil

	case transition.JoinGap:
		out := make([]string, 0, n)
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[%d:a]", i)
			if i < n-1 {
				out = append(out, fmt.Sprintf("aevalsrc=exprs=0:d=%s[silence%d]", num(policy.Seconds), i))
				fmt.Fprintf(&b, "[silence%d]", i)
			}
		}
		fmt.Fprintf(&b, "concat=n=%d:v=0:a=1%s", 2*n-1, FinalAudioLabel)
		return append(out, b.String()), nil

	case transition.JoinCrossfade:
		out := make([]string, 0, n-1)
		prev := "[0:a]"
		for i := 0; i < n-1; i++ {
			label := fmt.Sprintf("[a%d]", i)
			if i == n-2 {
				label = FinalAudioLabel
			}
			out = append(out, fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s", prev, i+1, num(policy.Seconds), label))
			prev = label
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: mode %q", transition.ErrInvalidPolicy, policy.Kind)
}
