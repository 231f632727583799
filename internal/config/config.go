// Package config loads run settings from defaults, a YAML file and the
// environment, in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/audioslides/internal/storage"
	"github.com/ivlev/audioslides/internal/system"
	"github.com/ivlev/audioslides/internal/transition"
	"github.com/ivlev/audioslides/internal/video"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUDIOSLIDES_"

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("config: invalid")

// Config holds every setting of a run.
type Config struct {
	// Inputs and output
	ImagesDir string `yaml:"images" env:"IMAGES, overwrite" validate:"required"`
	AudioDir  string `yaml:"audio" env:"AUDIO, overwrite" validate:"required"`
	Output    string `yaml:"output" env:"OUTPUT, overwrite" validate:"required"`

	// Video geometry
	Width  int `yaml:"width" env:"WIDTH, overwrite" validate:"min=2,max=8192"`
	Height int `yaml:"height" env:"HEIGHT, overwrite" validate:"min=2,max=8192"`
	FPS    int `yaml:"fps" env:"FPS, overwrite" validate:"min=1,max=240"`

	// Transitions
	TransitionDuration  float64  `yaml:"transition_duration" env:"TRANSITION_DURATION, overwrite" validate:"gt=0"`
	AudioTransitionMode string   `yaml:"audio_transition_mode" env:"AUDIO_TRANSITION_MODE, overwrite" validate:"oneof=gap crossfade none"`
	AudioGapDuration    float64  `yaml:"audio_gap_duration" env:"AUDIO_GAP_DURATION, overwrite" validate:"gte=0"`
	Transition          string   `yaml:"transition" env:"TRANSITION, overwrite"` // empty picks randomly
	ExcludeTransitions  []string `yaml:"exclude_transitions" env:"EXCLUDE_TRANSITIONS, overwrite"`
	SafetyMargin        float64  `yaml:"safety_margin" env:"SAFETY_MARGIN, overwrite" validate:"gte=0"`
	Seed                uint64   `yaml:"seed" env:"SEED, overwrite"` // 0 picks a random seed

	// Processing
	Workers       int    `yaml:"workers" env:"WORKERS, overwrite" validate:"gte=0"` // 0 = one per CPU
	TempDir       string `yaml:"temp_dir" env:"TEMP_DIR, overwrite"`
	VerifyContent bool   `yaml:"verify_content" env:"VERIFY_CONTENT, overwrite"`
	ManifestPath  string `yaml:"manifest" env:"MANIFEST, overwrite"`

	// Encoding
	Encoder     string `yaml:"encoder" env:"ENCODER, overwrite" validate:"oneof=auto libx264 h264_nvenc h264_videotoolbox"`
	Quality     int    `yaml:"quality" env:"QUALITY, overwrite" validate:"gte=0,lte=200"`
	Preset      string `yaml:"preset" env:"PRESET, overwrite"`
	FFmpegPath  string `yaml:"ffmpeg" env:"FFMPEG, overwrite"`
	FFprobePath string `yaml:"ffprobe" env:"FFPROBE, overwrite"`

	// Optional S3 publishing
	S3 S3Config `yaml:"s3" env:", prefix=S3_"`

	// Logging settings
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT, overwrite" validate:"oneof=text json"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn warning error"`
}

// S3Config holds optional upload settings.
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"BUCKET, overwrite"`
	Region          string `yaml:"region" env:"REGION, overwrite" validate:"required_with=Bucket"`
	Prefix          string `yaml:"prefix" env:"PREFIX, overwrite"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT, overwrite" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY, overwrite"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Width:               1920,
		Height:              1080,
		FPS:                 30,
		TransitionDuration:  1.0,
		AudioTransitionMode: string(transition.JoinGap),
		AudioGapDuration:    0.5,
		SafetyMargin:        transition.DefaultSafetyMargin,
		Encoder:             video.EncoderX264,
		Preset:              "fast",
		LogFormat:           "text",
		LogLevel:            "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (if any) and
// AUDIOSLIDES_* environment variables. It does not validate; callers apply
// their own overrides first and then call Validate.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, envconfig.OsLookuper()),
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), describe(fe)))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("%w: width and height must be even for yuv420p, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if _, err := c.AudioJoinPolicy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.TransitionOptions(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// AudioJoinPolicy converts the audio settings into a transition.Policy.
func (c *Config) AudioJoinPolicy() (transition.Policy, error) {
	return transition.ParsePolicy(c.AudioTransitionMode, c.AudioGapDuration, c.TransitionDuration)
}

// TransitionOptions converts transition settings into planner options.
func (c *Config) TransitionOptions() ([]transition.Option, error) {
	opts := []transition.Option{transition.WithSafetyMargin(c.SafetyMargin)}

	if c.Transition != "" {
		t, err := transition.Parse(c.Transition)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transition.WithFixed(t))
	}

	if len(c.ExcludeTransitions) > 0 {
		excluded, err := transition.ParseList(c.ExcludeTransitions)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transition.WithExclude(excluded...))
	}

	// Surface exclusion errors here rather than after rendering.
	if _, err := transition.NewPlanner(opts...); err != nil {
		return nil, err
	}
	return opts, nil
}

// Binaries returns the ffmpeg executables to run.
func (c *Config) Binaries() system.Binaries {
	b := system.DefaultBinaries()
	if c.FFmpegPath != "" {
		b.FFmpeg = c.FFmpegPath
	}
	if c.FFprobePath != "" {
		b.FFprobe = c.FFprobePath
	}
	return b
}

// EncoderSettings resolves "auto" by asking ffmpeg for hardware encoders.
func (c *Config) EncoderSettings(ctx context.Context) video.EncoderSettings {
	codec := c.Encoder
	if codec == "auto" {
		codec = system.BestH264Encoder(ctx, c.Binaries().FFmpeg)
	}
	return video.EncoderSettings{Codec: codec, Quality: c.Quality, Preset: c.Preset}
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3.Bucket != "" && c.S3.Region != ""
}

// StorageConfig converts the S3 settings for the storage package.
func (c *Config) StorageConfig() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3.Bucket,
		Region:          c.S3.Region,
		Prefix:          c.S3.Prefix,
		Endpoint:        c.S3.Endpoint,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
	}
}

// NewLogger creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	secret := ""
	if c.S3.SecretAccessKey != "" {
		secret = "***"
	}
	return fmt.Sprintf(
		"Config{Images: %s, Audio: %s, Output: %s, Size: %dx%d@%d, Transition: %.2fs/%s, AudioMode: %s, Workers: %d, Encoder: %s, S3Bucket: %s, S3Secret: %s, LogFormat: %s, LogLevel: %s}",
		c.ImagesDir, c.AudioDir, c.Output,
		c.Width, c.Height, c.FPS,
		c.TransitionDuration, c.Transition,
		c.AudioTransitionMode,
		c.Workers,
		c.Encoder,
		c.S3.Bucket, secret,
		c.LogFormat, c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
