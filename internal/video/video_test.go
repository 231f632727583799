package video

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/audioslides/internal/effects"
	"github.com/ivlev/audioslides/internal/source"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/transition"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestEncoderSettings_Args(t *testing.T) {
	tests := []struct {
		name string
		enc  EncoderSettings
		want []string
	}{
		{"default x264", DefaultEncoder(), []string{"-c:v", "libx264", "-pix_fmt", "yuv420p", "-preset", "fast", "-crf", "23"}},
		{"empty codec", EncoderSettings{}, []string{"-c:v", "libx264", "-pix_fmt", "yuv420p", "-preset", "fast", "-crf", "23"}},
		{"nvenc", EncoderSettings{Codec: EncoderNVENC, Quality: 19}, []string{"-c:v", "h264_nvenc", "-pix_fmt", "yuv420p", "-cq", "19"}},
		{"videotoolbox default", EncoderSettings{Codec: EncoderVideoToolbox}, []string{"-c:v", "h264_videotoolbox", "-pix_fmt", "yuv420p", "-b:v", "7500k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.enc.Args())
		})
	}
}

func TestRenderArgs(t *testing.T) {
	g := NewFFmpegGateway(system.DefaultBinaries(), DefaultEncoder(), nil)
	plan := effects.SegmentPlan{
		Pair:      source.SourcePair{Index: 2, ImagePath: "/in/image_002.jpg", AudioPath: "/in/audio_002.mp3"},
		Width:     1920,
		Height:    1080,
		FPS:       30,
		Duration:  4.5,
		StartZoom: 1.15,
		EndZoom:   1.0,
		Region:    effects.RegionCenter,
		Frames:    135,
	}

	args := g.renderArgs(plan, "/tmp/segment_002.mp4")

	assert.Equal(t, "4.5", args[indexOf(args, "-t")+1])
	assert.Equal(t, "1", args[indexOf(args, "-loop")+1])
	assert.Equal(t, "30", args[indexOf(args, "-r")+1])
	assert.Equal(t, "135", args[indexOf(args, "-frames:v")+1])
	assert.Contains(t, args[indexOf(args, "-vf")+1], "zoompan=")
	assert.Less(t, indexOf(args, "-loop"), indexOf(args, "-i"), "-loop must precede the image input")
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, "aac", args[indexOf(args, "-c:a")+1])
	assert.Equal(t, "/tmp/segment_002.mp4", args[len(args)-1])
}

func TestMergeArgs(t *testing.T) {
	g := NewFFmpegGateway(system.DefaultBinaries(), DefaultEncoder(), nil)
	segments := []RenderedSegment{{Index: 1, Path: "a.mp4", Duration: 5}, {Index: 2, Path: "b.mp4", Duration: 5}}
	plan := transition.Plan{
		Entries: []transition.Entry{{Transition: transition.Fade, Offset: 3.95, Duration: 1, AudioJoin: transition.NoJoin()}},
		Policy:  transition.NoJoin(),
	}

	args, err := g.mergeArgs(segments, plan, "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", args[indexOf(args, "-i")+1])
	assert.Contains(t, args[indexOf(args, "-filter_complex")+1], "xfade=transition=fade")
	assert.Contains(t, args, "[final_video]")
	assert.Contains(t, args, "[final_audio]")
	assert.Equal(t, "+faststart", args[indexOf(args, "-movflags")+1])

	_, err = g.mergeArgs(segments[:1], plan, "out.mp4")
	assert.Error(t, err)
}

func TestErrorsWrap(t *testing.T) {
	ffErr := &FFmpegError{Args: []string{"-y"}, Stderr: "boom", Err: errors.New("exit status 1")}

	renderErr := error(&RenderError{Index: 3, Err: ffErr})
	assert.ErrorIs(t, renderErr, ErrRender)
	var asFF *FFmpegError
	require.ErrorAs(t, renderErr, &asFF)
	assert.Equal(t, "boom", asFF.Stderr)
	assert.Contains(t, renderErr.Error(), "segment 003")

	mergeErr := error(&MergeError{Output: "out.mp4", Err: ffErr})
	assert.ErrorIs(t, mergeErr, ErrMerge)
	assert.NotErrorIs(t, mergeErr, ErrRender)
}

func TestFFmpegGateway_RenderAndProbe(t *testing.T) {
	skipIfNoFFmpeg(t)
	ctx := context.Background()
	if !system.CheckEncoderSupport(ctx, "ffmpeg", EncoderX264) {
		t.Skip("ffmpeg built without libx264, skipping test")
	}

	dir := t.TempDir()
	image := filepath.Join(dir, "image_001.png")
	audio := filepath.Join(dir, "audio_001.wav")
	require.NoError(t, exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "color=c=blue:s=160x120", "-frames:v", "1", image).Run())
	require.NoError(t, exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1", audio).Run())

	g := NewFFmpegGateway(system.DefaultBinaries(), DefaultEncoder(), nil)

	d, err := g.Duration(ctx, audio)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 0.05)

	pl := effects.NewPlanner(g, 160, 120, 10)
	plan, err := pl.Plan(ctx, source.SourcePair{Index: 1, ImagePath: image, AudioPath: audio}, effects.NewTaskRand(1, 1))
	require.NoError(t, err)

	out, err := g.RenderSegment(ctx, plan, filepath.Join(dir, "segment_001.mp4"))
	require.NoError(t, err)
	assert.FileExists(t, out)

	rendered, err := g.Duration(ctx, out)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rendered, 0.2)
}

func TestFFmpegGateway_ProbeMissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)
	g := NewFFmpegGateway(system.DefaultBinaries(), DefaultEncoder(), nil)

	_, err := g.Duration(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorIs(t, err, ErrProbe)
}
