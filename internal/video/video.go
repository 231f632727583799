// Package video renders and merges segments with the ffmpeg command line.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/renderer"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/transition"
)

var (
	// ErrProbe is returned when a media duration cannot be read.
	ErrProbe = errors.New("probe")
	// ErrRender is returned when a segment fails to render.
	ErrRender = errors.New("render")
	// ErrMerge is returned when the final merge fails.
	ErrMerge = errors.New("merge")
)

// RenderedSegment is a segment file on disk with its measured duration.
type RenderedSegment struct {
	Index    int
	Path     string
	Duration float64
}

// Segment returns the fields the concat planner works with.
func (s RenderedSegment) Segment() transition.Segment {
	return transition.Segment{Index: s.Index, Duration: s.Duration}
}

// Gateway is everything the pipeline needs from a media toolchain.
type Gateway interface {
	Duration(ctx context.Context, path string) (float64, error)
	RenderSegment(ctx context.Context, plan effects.SegmentPlan, out string) (string, error)
	MergeSegments(ctx context.Context, segments []RenderedSegment, plan transition.Plan, out string) (string, error)
	CopySegment(ctx context.Context, segment RenderedSegment, out string) (string, error)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// RenderError wraps a failed segment render.
type RenderError struct {
	Index int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render segment %03d: %v", e.Index, e.Err)
}

func (e *RenderError) Unwrap() []error { return []error{ErrRender, e.Err} }

// MergeError wraps a failed merge or copy of the final output.
type MergeError struct {
	Output string
	Err    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge into %s: %v", e.Output, e.Err)
}

func (e *MergeError) Unwrap() []error { return []error{ErrMerge, e.Err} }

// FFmpegGateway implements Gateway with the ffmpeg and ffprobe binaries.
type FFmpegGateway struct {
	bins    system.Binaries
	encoder EncoderSettings
	logger  *slog.Logger
}

// NewFFmpegGateway creates an FFmpegGateway.
func NewFFmpegGateway(bins system.Binaries, encoder EncoderSettings, logger *slog.Logger) *FFmpegGateway {
	if bins.FFmpeg == "" {
		bins.FFmpeg = "ffmpeg"
	}
	if bins.FFprobe == "" {
		bins.FFprobe = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegGateway{bins: bins, encoder: encoder, logger: logger}
}

// Duration probes the container duration of path.
func (g *FFmpegGateway) Duration(ctx context.Context, path string) (float64, error) {
	d, err := system.ProbeDuration(ctx, g.bins.FFprobe, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	return d, nil
}

// RenderSegment renders one Ken Burns segment with its narration to out.
func (g *FFmpegGateway) RenderSegment(ctx context.Context, plan effects.SegmentPlan, out string) (string, error) {
	args := g.renderArgs(plan, out)
	start := time.Now()
	if err := g.run(ctx, args); err != nil {
		return "", &RenderError{Index: plan.Pair.Index, Err: err}
	}
	g.logger.Debug("segment rendered",
		slog.Int("index", plan.Pair.Index),
		slog.String("region", string(plan.Region)),
		slog.Int("frames", plan.Frames),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (g *FFmpegGateway) renderArgs(plan effects.SegmentPlan, out string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-r", strconv.Itoa(plan.FPS),
		"-loop", "1",
		"-t", strconv.FormatFloat(plan.Duration, 'f', -1, 64),
		"-i", plan.Pair.ImagePath,
		"-i", plan.Pair.AudioPath,
		"-vf", renderer.ZoomPanFilter(plan),
		"-frames:v", strconv.Itoa(plan.Frames),
	}
	args = append(args, g.encoder.Args()...)
	args = append(args, "-c:a", "aac", "-shortest", out)
	return args
}

// MergeSegments joins segments into out following plan.
func (g *FFmpegGateway) MergeSegments(ctx context.Context, segments []RenderedSegment, plan transition.Plan, out string) (string, error) {
	args, err := g.mergeArgs(segments, plan, out)
	if err != nil {
		return "", &MergeError{Output: out, Err: err}
	}
	if err := g.run(ctx, args); err != nil {
		return "", &MergeError{Output: out, Err: err}
	}
	return out, nil
}

func (g *FFmpegGateway) mergeArgs(segments []RenderedSegment, plan transition.Plan, out string) ([]string, error) {
	if len(segments) != len(plan.Entries)+1 {
		return nil, fmt.Errorf("plan has %d boundaries for %d segments", len(plan.Entries), len(segments))
	}
	graph, err := renderer.ConcatFilter(plan)
	if err != nil {
		return nil, err
	}

	args := []string{"-y", "-hide_banner"}
	for _, s := range segments {
		args = append(args, "-i", s.Path)
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", renderer.FinalVideoLabel,
		"-map", renderer.FinalAudioLabel,
	)
	args = append(args, g.encoder.Args()...)
	args = append(args, "-c:a", "aac", "-movflags", "+faststart", out)
	return args, nil
}

// CopySegment remuxes a single segment to out without re-encoding.
func (g *FFmpegGateway) CopySegment(ctx context.Context, segment RenderedSegment, out string) (string, error) {
	args := []string{"-y", "-hide_banner", "-i", segment.Path, "-c", "copy", "-movflags", "+faststart", out}
	if err := g.run(ctx, args); err != nil {
		return "", &MergeError{Output: out, Err: err}
	}
	return out, nil
}

func (g *FFmpegGateway) run(ctx context.Context, args []string) error {
	// #nosec G204 - binary path comes from configuration, not user media
	cmd := exec.CommandContext(ctx, g.bins.FFmpeg, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}
