package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivlev/audioslides/internal/config"
	"github.com/ivlev/audioslides/internal/engine"
	"github.com/ivlev/audioslides/internal/storage"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/video"
)

// renderFlags mirror config.Config. Only flags set on the command line
// override file and environment values.
type renderFlags struct {
	images, audio, output string
	width, height, fps    int
	aspect                string

	transitionDuration float64
	audioMode          string
	audioGap           float64
	transition         string
	exclude            []string
	safetyMargin       float64
	seed               uint64

	workers       int
	tempDir       string
	verifyContent bool
	manifest      string
	showPlan      bool

	encoder string
	quality int
	preset  string

	s3Bucket, s3Region, s3Prefix, s3Endpoint string
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render image/audio pairs into one video",
		Example: `  audioslides render -i slides -a narration -o out/talk.mp4
  audioslides render -i slides -a narration --aspect 9:16 --audio-transition-mode crossfade`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			if cfg.Output == "" {
				cfg.Output = defaultOutputPath(cfg.ImagesDir, time.Now())
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runRender(cmd.Context(), cmd.OutOrStdout(), cfg, f.showPlan)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.images, "images", "i", "", "Directory with image_NNN files")
	fs.StringVarP(&f.audio, "audio", "a", "", "Directory with audio_NNN files")
	fs.StringVarP(&f.output, "output", "o", "", "Output video (default output/<images>_<timestamp>.mp4)")
	fs.IntVarP(&f.width, "width", "w", 0, "Output width")
	fs.IntVarP(&f.height, "height", "H", 0, "Output height")
	fs.IntVarP(&f.fps, "fps", "f", 0, "Frames per second")
	fs.StringVar(&f.aspect, "aspect", "", "Size preset: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")

	fs.Float64VarP(&f.transitionDuration, "transition-duration", "t", 0, "Video transition length in seconds")
	fs.StringVar(&f.audioMode, "audio-transition-mode", "", "Audio join: gap, crossfade or none")
	fs.Float64Var(&f.audioGap, "audio-gap-duration", 0, "Silence between clips in gap mode (seconds)")
	fs.StringVar(&f.transition, "transition", "", "Use one transition everywhere instead of random picks")
	fs.StringSliceVar(&f.exclude, "exclude-transition", nil, "Transitions never picked randomly (repeatable)")
	fs.Float64Var(&f.safetyMargin, "safety-margin", 0, "Seconds subtracted from every xfade offset")
	fs.Uint64Var(&f.seed, "seed", 0, "Random seed for regions and transitions (0 = random)")

	fs.IntVar(&f.workers, "workers", 0, "Concurrent segment renders (0 = one per CPU)")
	fs.StringVar(&f.tempDir, "temp-dir", "", "Parent of the per-run scratch directory")
	fs.BoolVar(&f.verifyContent, "verify-content", false, "Check file headers match the extension")
	fs.StringVar(&f.manifest, "manifest", "", "Write the run manifest (YAML) to this path")
	fs.BoolVar(&f.showPlan, "show-plan", false, "Print the transition plan after rendering")

	fs.StringVar(&f.encoder, "encoder", "", "Video encoder: auto, libx264, h264_nvenc, h264_videotoolbox")
	fs.IntVar(&f.quality, "quality", 0, "Quality (x264 CRF, NVENC CQ, VideoToolbox Q*100 kbit/s; 0 = encoder default)")
	fs.StringVar(&f.preset, "preset", "", "libx264 preset")

	fs.StringVar(&f.s3Bucket, "s3-bucket", "", "Upload the result to this S3 bucket")
	fs.StringVar(&f.s3Region, "s3-region", "", "S3 region")
	fs.StringVar(&f.s3Prefix, "s3-prefix", "", "S3 key prefix")
	fs.StringVar(&f.s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint URL")

	return cmd
}

func (f *renderFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}

	set("images", func() { cfg.ImagesDir = f.images })
	set("audio", func() { cfg.AudioDir = f.audio })
	set("output", func() { cfg.Output = f.output })
	set("width", func() { cfg.Width = f.width })
	set("height", func() { cfg.Height = f.height })
	set("fps", func() { cfg.FPS = f.fps })
	set("transition-duration", func() { cfg.TransitionDuration = f.transitionDuration })
	set("audio-transition-mode", func() { cfg.AudioTransitionMode = f.audioMode })
	set("audio-gap-duration", func() { cfg.AudioGapDuration = f.audioGap })
	set("transition", func() { cfg.Transition = f.transition })
	set("exclude-transition", func() { cfg.ExcludeTransitions = f.exclude })
	set("safety-margin", func() { cfg.SafetyMargin = f.safetyMargin })
	set("seed", func() { cfg.Seed = f.seed })
	set("workers", func() { cfg.Workers = f.workers })
	set("temp-dir", func() { cfg.TempDir = f.tempDir })
	set("verify-content", func() { cfg.VerifyContent = f.verifyContent })
	set("manifest", func() { cfg.ManifestPath = f.manifest })
	set("encoder", func() { cfg.Encoder = f.encoder })
	set("quality", func() { cfg.Quality = f.quality })
	set("preset", func() { cfg.Preset = f.preset })
	set("s3-bucket", func() { cfg.S3.Bucket = f.s3Bucket })
	set("s3-region", func() { cfg.S3.Region = f.s3Region })
	set("s3-prefix", func() { cfg.S3.Prefix = f.s3Prefix })
	set("s3-endpoint", func() { cfg.S3.Endpoint = f.s3Endpoint })

	if fs.Changed("aspect") {
		w, h, err := aspectSize(f.aspect)
		if err != nil {
			return err
		}
		cfg.Width, cfg.Height = w, h
	}
	return nil
}

func aspectSize(preset string) (int, int, error) {
	switch preset {
	case "16:9":
		return 1280, 720, nil
	case "9:16":
		return 720, 1280, nil
	case "4:5":
		return 1080, 1350, nil
	}
	return 0, 0, fmt.Errorf("unknown aspect %q (want 16:9, 9:16 or 4:5)", preset)
}

// defaultOutputPath names the result after the images directory.
func defaultOutputPath(imagesDir string, now time.Time) string {
	name := filepath.Base(filepath.Clean(imagesDir))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "video"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", name, now.Format("2006-01-02_15-04-05")))
}

func runRender(ctx context.Context, out io.Writer, cfg *config.Config, showPlan bool) error {
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	system.InitResourceLimits(logger)

	bins := cfg.Binaries()
	encoder := cfg.EncoderSettings(ctx)
	if encoder.Codec != video.EncoderX264 {
		logger.Info("hardware encoder selected", slog.String("encoder", encoder.Codec))
	}
	if err := system.FirstFailure(system.Preflight(ctx, bins, encoder.Codec)); err != nil {
		return err
	}

	policy, err := cfg.AudioJoinPolicy()
	if err != nil {
		return err
	}
	transitionOpts, err := cfg.TransitionOptions()
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = system.DefaultWorkers()
	}

	opts := engine.Options{
		ImagesDir:          cfg.ImagesDir,
		AudioDir:           cfg.AudioDir,
		Output:             cfg.Output,
		Width:              cfg.Width,
		Height:             cfg.Height,
		FPS:                cfg.FPS,
		TransitionDuration: cfg.TransitionDuration,
		AudioJoin:          policy,
		TransitionOptions:  transitionOpts,
		Workers:            workers,
		TempDir:            cfg.TempDir,
		Seed:               cfg.Seed,
		VerifyContent:      cfg.VerifyContent,
		ManifestPath:       cfg.ManifestPath,
	}

	pipelineOpts := []engine.PipelineOption{
		engine.WithLogger(logger),
		engine.WithObserver(observerFor(cfg, logger)),
	}
	if cfg.S3Enabled() {
		publisher, err := storage.NewS3Publisher(ctx, cfg.StorageConfig())
		if err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, engine.WithPublisher(publisher))
	}

	gateway := video.NewFFmpegGateway(bins, encoder, logger)
	res, err := engine.NewPipeline(opts, gateway, pipelineOpts...).Run(ctx)
	if err != nil {
		return err
	}

	if showPlan {
		printPlan(out, res)
	}
	fmt.Fprintf(out, "Output: %s (%d segments, seed %d, %s)\n",
		res.Output, len(res.Segments), res.Seed, res.Elapsed.Round(time.Millisecond))
	if res.URL != "" {
		fmt.Fprintf(out, "Uploaded: %s\n", res.URL)
	}
	return nil
}

// observerFor draws a progress bar on terminals unless debug logs would
// interleave with it.
func observerFor(cfg *config.Config, logger *slog.Logger) engine.Observer {
	if isTerminal(os.Stderr) && !strings.EqualFold(cfg.LogLevel, "debug") {
		return newProgressObserver(os.Stderr)
	}
	return &engine.LogObserver{Logger: logger}
}

func printPlan(w io.Writer, res *engine.Result) {
	segRows := make([][]string, 0, len(res.Segments))
	for i, s := range res.Segments {
		region := ""
		if i < len(res.Plans) {
			region = string(res.Plans[i].Region)
		}
		segRows = append(segRows, []string{
			fmt.Sprintf("%03d", s.Index),
			formatSeconds(s.Duration),
			region,
		})
	}
	printTable(w, []string{"Segment", "Duration", "Region"}, segRows,
		[]columnAlignment{alignLeft, alignRight, alignLeft})

	if res.Plan == nil {
		return
	}
	rows := make([][]string, 0, len(res.Plan.Entries))
	for _, e := range res.Plan.Entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Boundary),
			fmt.Sprintf("%03d → %03d", e.From, e.To),
			string(e.Transition),
			formatSeconds(e.Offset),
			formatSeconds(e.Duration),
			e.AudioJoin.String(),
		})
	}
	printTable(w, []string{"#", "Segments", "Transition", "Offset", "Duration", "Audio"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
	fmt.Fprintf(w, "Video %s, audio %s\n",
		formatSeconds(res.Plan.VideoDuration), formatSeconds(res.Plan.AudioDuration))
}

var _ engine.Observer = (*progressObserver)(nil)
