// Package engine drives a run from discovery to the merged output.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/manifest"
	"github.com/ivlev/audioslides/internal/source"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/transition"
	"github.com/ivlev/audioslides/internal/video"
)

// Options are the per-run settings of a Pipeline.
type Options struct {
	ImagesDir string
	AudioDir  string
	Output    string

	Width  int
	Height int
	FPS    int

	TransitionDuration float64
	AudioJoin          transition.Policy
	TransitionOptions  []transition.Option

	Workers       int
	TempDir       string
	Seed          uint64 // 0 picks a random seed
	VerifyContent bool
	ManifestPath  string
}

// Publisher uploads the finished output somewhere else.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Result describes a successful run.
type Result struct {
	Output   string
	RunID    string
	Seed     uint64
	Plans    []effects.SegmentPlan
	Segments []video.RenderedSegment
	Plan     *transition.Plan // nil for a single segment
	URL      string
	Elapsed  time.Duration
}

// Pipeline assembles image/audio pairs into one video.
type Pipeline struct {
	opts      Options
	gateway   video.Gateway
	observer  Observer
	publisher Publisher
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithObserver receives per-segment progress.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// WithPublisher uploads the output after a successful merge.
func WithPublisher(pub Publisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts Options, gateway video.Gateway, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		opts:     opts,
		gateway:  gateway,
		observer: NopObserver{},
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Run executes every stage in order and stops at the first failure. The
// scratch directory is removed on every path and a failed run never leaves
// a file at Options.Output.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	output := p.opts.Output

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, stageErr(StageLock, fmt.Errorf("%w: create output dir: %w", system.ErrResource, err))
	}
	lock, err := system.LockOutput(output)
	if err != nil {
		return nil, stageErr(StageLock, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("release output lock", slog.Any("error", err))
		}
	}()

	var matchOpts []source.Option
	if p.opts.VerifyContent {
		matchOpts = append(matchOpts, source.WithContentCheck())
	}
	pairs, err := source.Match(p.opts.ImagesDir, p.opts.AudioDir, matchOpts...)
	if err != nil {
		return nil, stageErr(StageDiscover, err)
	}
	p.logger.Info("pairs discovered", slog.Int("count", len(pairs)))

	scope, err := system.AcquireTempScope(p.opts.TempDir)
	if err != nil {
		return nil, stageErr(StageResource, err)
	}
	defer func() {
		if err := scope.Release(); err != nil {
			p.logger.Warn("remove temp dir", slog.String("dir", scope.Dir), slog.Any("error", err))
		}
	}()

	seed := p.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger := p.logger.With(slog.String("run_id", scope.RunID))
	logger.Info("run started",
		slog.Uint64("seed", seed),
		slog.String("temp_dir", scope.Dir),
		slog.String("output", output),
	)

	plans, err := p.planSegments(ctx, pairs, seed)
	if err != nil {
		return nil, err
	}

	scheduler := NewScheduler(p.gateway, scope.Dir, p.opts.Workers, p.observer)
	segments, err := scheduler.Run(ctx, plans)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Output:   output,
		RunID:    scope.RunID,
		Seed:     seed,
		Plans:    plans,
		Segments: segments,
	}

	if len(segments) > 1 {
		plan, err := p.planConcat(segments, seed)
		if err != nil {
			return nil, err
		}
		result.Plan = &plan
		logger.Info("concat planned",
			slog.Int("boundaries", len(plan.Entries)),
			slog.String("audio_join", plan.Policy.String()),
			slog.Float64("video_duration", plan.VideoDuration),
			slog.Float64("audio_duration", plan.AudioDuration),
		)
	}

	if p.opts.ManifestPath != "" {
		m := manifest.Build(scope.RunID, seed, output, plans, segments, result.Plan)
		if err := manifest.Write(m, p.opts.ManifestPath); err != nil {
			return nil, stageErr(StageManifest, err)
		}
	}

	if err := p.assemble(ctx, segments, result.Plan, output); err != nil {
		return nil, stageErr(StageMerge, err)
	}

	if p.publisher != nil {
		url, err := p.publisher.Publish(ctx, output)
		if err != nil {
			return nil, stageErr(StagePublish, err)
		}
		result.URL = url
		logger.Info("output published", slog.String("url", url))
	}

	result.Elapsed = time.Since(start)
	logger.Info("run finished",
		slog.String("output", output),
		slog.Int("segments", len(segments)),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (p *Pipeline) planSegments(ctx context.Context, pairs []source.SourcePair, seed uint64) ([]effects.SegmentPlan, error) {
	planner := effects.NewPlanner(p.gateway, p.opts.Width, p.opts.Height, p.opts.FPS)

	plans := make([]effects.SegmentPlan, 0, len(pairs))
	for _, pair := range pairs {
		plan, err := planner.Plan(ctx, pair, effects.NewTaskRand(seed, pair.Index))
		if err != nil {
			return nil, &StageError{Stage: StageProbe, Index: pair.Index, Err: err}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (p *Pipeline) planConcat(segments []video.RenderedSegment, seed uint64) (transition.Plan, error) {
	opts := append([]transition.Option{
		transition.WithRand(rand.New(rand.NewPCG(seed, math.MaxUint64))),
	}, p.opts.TransitionOptions...)

	planner, err := transition.NewPlanner(opts...)
	if err != nil {
		return transition.Plan{}, stageErr(StagePlan, err)
	}

	input := make([]transition.Segment, len(segments))
	for i, s := range segments {
		input[i] = s.Segment()
	}
	plan, err := planner.Plan(input, p.opts.TransitionDuration, p.opts.AudioJoin)
	if err != nil {
		var tooLong *transition.TooLongError
		if errors.As(err, &tooLong) {
			return transition.Plan{}, &StageError{Stage: StagePlan, Index: tooLong.Index, Err: err}
		}
		return transition.Plan{}, stageErr(StagePlan, err)
	}
	return plan, nil
}

// assemble writes into a hidden sibling of output and renames it into place
// only once ffmpeg has succeeded.
func (p *Pipeline) assemble(ctx context.Context, segments []video.RenderedSegment, plan *transition.Plan, output string) error {
	partial := partialPath(output)

	var err error
	if plan == nil {
		_, err = p.gateway.CopySegment(ctx, segments[0], partial)
	} else {
		_, err = p.gateway.MergeSegments(ctx, segments, *plan, partial)
	}
	if err != nil {
		_ = os.Remove(partial)
		return err
	}

	if err := os.Rename(partial, output); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

// partialPath keeps the extension so ffmpeg can infer the container.
func partialPath(output string) string {
	dir, base := filepath.Split(output)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}
