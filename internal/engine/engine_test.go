package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/audioslides/internal/manifest"
	"github.com/ivlev/audioslides/internal/source"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/transition"
)

type fixture struct {
	images  string
	audio   string
	tempDir string
	output  string
}

func newFixture(t *testing.T, indices ...int) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		images:  filepath.Join(root, "images"),
		audio:   filepath.Join(root, "audio"),
		tempDir: filepath.Join(root, "tmp"),
		output:  filepath.Join(root, "out", "final.mp4"),
	}
	require.NoError(t, os.MkdirAll(f.images, 0o755))
	require.NoError(t, os.MkdirAll(f.audio, 0o755))
	for _, i := range indices {
		require.NoError(t, os.WriteFile(filepath.Join(f.images, fmt.Sprintf("image_%03d.jpg", i)), []byte("img"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(f.audio, fmt.Sprintf("audio_%03d.mp3", i)), []byte("aud"), 0o644))
	}
	return f
}

func (f fixture) options() Options {
	return Options{
		ImagesDir:          f.images,
		AudioDir:           f.audio,
		Output:             f.output,
		Width:              1280,
		Height:             720,
		FPS:                30,
		TransitionDuration: 1.0,
		AudioJoin:          transition.Gap(0.5),
		Workers:            2,
		TempDir:            f.tempDir,
		Seed:               99,
	}
}

// assertNoScratch checks the temp parent holds no run directory.
func (f fixture) assertNoScratch(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (f fixture) assertNoOutput(t *testing.T) {
	t.Helper()
	assert.NoFileExists(t, f.output)
	assert.NoFileExists(t, partialPath(f.output))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	path string
}

func (p *recordingPublisher) Publish(_ context.Context, path string) (string, error) {
	p.path = path
	return "https://bucket.example/final.mp4", nil
}

func TestPipeline_Success(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	g := newFakeGateway(map[int]float64{1: 5, 2: 5, 3: 5})
	pub := &recordingPublisher{}

	opts := f.options()
	opts.ManifestPath = filepath.Join(filepath.Dir(f.output), "final.yaml")

	res, err := NewPipeline(opts, g, WithLogger(quietLogger()), WithPublisher(pub)).Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, f.output)
	assert.NoFileExists(t, partialPath(f.output))
	assert.NoFileExists(t, f.output+".lock")
	f.assertNoScratch(t)

	require.Len(t, res.Segments, 3)
	require.NotNil(t, res.Plan)
	require.Len(t, res.Plan.Entries, 2)
	assert.InDelta(t, 3.95, res.Plan.Entries[0].Offset, 1e-9)
	assert.InDelta(t, 7.95, res.Plan.Entries[1].Offset, 1e-9)
	assert.Equal(t, uint64(99), res.Seed)
	assert.Equal(t, f.output, pub.path)
	assert.Equal(t, "https://bucket.example/final.mp4", res.URL)
	assert.Equal(t, transition.JoinGap, g.merged.Policy.Kind)

	m, err := manifest.Read(opts.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, m.RunID)
	assert.Len(t, m.Segments, 3)
	assert.Len(t, m.Transitions, 2)
}

func TestPipeline_SameSeedSamePlan(t *testing.T) {
	run := func() *Result {
		f := newFixture(t, 1, 2, 3, 4)
		g := newFakeGateway(map[int]float64{1: 3, 2: 4, 3: 5, 4: 6})
		res, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	for i := range a.Plans {
		assert.Equal(t, a.Plans[i].Region, b.Plans[i].Region)
	}
	for i := range a.Plan.Entries {
		assert.Equal(t, a.Plan.Entries[i].Transition, b.Plan.Entries[i].Transition)
	}
}

func TestPipeline_SinglePairIsCopied(t *testing.T) {
	f := newFixture(t, 7)
	g := newFakeGateway(map[int]float64{7: 4})

	res, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, g.copied)
	assert.Nil(t, res.Plan)
	assert.FileExists(t, f.output)
	f.assertNoScratch(t)
}

func TestPipeline_DiscoveryFailure(t *testing.T) {
	f := newFixture(t, 1, 2)
	require.NoError(t, os.Remove(filepath.Join(f.audio, "audio_002.mp3")))

	_, err := NewPipeline(f.options(), newFakeGateway(nil), WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDiscover, stageErr.Stage)
	assert.ErrorIs(t, err, source.ErrDiscovery)
	f.assertNoOutput(t)
	f.assertNoScratch(t)
}

func TestPipeline_ProbeFailure(t *testing.T) {
	f := newFixture(t, 1, 2)
	g := newFakeGateway(map[int]float64{1: 5})

	_, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageProbe, stageErr.Stage)
	assert.Equal(t, 2, stageErr.Index)
	assert.Equal(t, 0, g.totalCalls())
	f.assertNoOutput(t)
	f.assertNoScratch(t)
}

func TestPipeline_RenderFailure(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	g := newFakeGateway(map[int]float64{1: 5, 2: 5, 3: 5, 4: 5})
	g.failRender[3] = true

	_, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageRender, stageErr.Stage)
	assert.Equal(t, 3, stageErr.Index)
	assert.Contains(t, err.Error(), "render: segment 003")
	assert.Nil(t, g.merged)
	f.assertNoOutput(t)
	f.assertNoScratch(t)
}

func TestPipeline_TransitionTooLong(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	g := newFakeGateway(map[int]float64{1: 5, 2: 0.5, 3: 5})

	_, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePlan, stageErr.Stage)
	assert.Equal(t, 2, stageErr.Index)
	assert.ErrorIs(t, err, transition.ErrTransitionTooLong)
	f.assertNoOutput(t)
	f.assertNoScratch(t)
}

func TestPipeline_NoTransitionsLeft(t *testing.T) {
	f := newFixture(t, 1, 2)
	g := newFakeGateway(map[int]float64{1: 5, 2: 5})

	opts := f.options()
	opts.TransitionOptions = []transition.Option{transition.WithExclude(transition.All()...)}

	_, err := NewPipeline(opts, g, WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePlan, stageErr.Stage)
	assert.ErrorIs(t, err, transition.ErrNoTransitions)
}

func TestPipeline_MergeFailureLeavesNoOutput(t *testing.T) {
	f := newFixture(t, 1, 2)
	g := newFakeGateway(map[int]float64{1: 5, 2: 5})
	g.failMerge = true

	_, err := NewPipeline(f.options(), g, WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageMerge, stageErr.Stage)
	f.assertNoOutput(t)
	f.assertNoScratch(t)
}

func TestPipeline_OutputLocked(t *testing.T) {
	f := newFixture(t, 1, 2)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0o755))
	held, err := system.LockOutput(f.output)
	require.NoError(t, err)
	defer held.Unlock()

	_, err = NewPipeline(f.options(), newFakeGateway(nil), WithLogger(quietLogger())).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLock, stageErr.Stage)
	assert.ErrorIs(t, err, system.ErrResource)
}

func TestPartialPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", ".final.partial.mp4"), partialPath(filepath.Join("out", "final.mp4")))
}

func TestStageError_Format(t *testing.T) {
	err := &StageError{Stage: StageMerge, Index: -1, Err: errBoom}
	assert.Equal(t, "merge: boom", err.Error())
}
