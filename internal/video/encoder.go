package video

import (
	"fmt"
	"strconv"
)

// Supported H.264 encoders.
const (
	EncoderX264         = "libx264"
	EncoderNVENC        = "h264_nvenc"
	EncoderVideoToolbox = "h264_videotoolbox"
)

// EncoderSettings selects the video codec and its quality knob.
type EncoderSettings struct {
	Codec string
	// Quality is CRF for libx264, CQ for NVENC and bitrate in units of
	// 100 kbit/s for VideoToolbox. Zero selects the encoder default.
	Quality int
	// Preset applies to libx264 only.
	Preset string
}

// DefaultEncoder matches the software settings used for every segment.
func DefaultEncoder() EncoderSettings {
	return EncoderSettings{Codec: EncoderX264, Quality: 23, Preset: "fast"}
}

func (e EncoderSettings) quality() int {
	if e.Quality > 0 {
		return e.Quality
	}
	if e.Codec == EncoderVideoToolbox {
		return 75
	}
	return 23
}

// Args returns the ffmpeg output options for the video stream.
func (e EncoderSettings) Args() []string {
	codec := e.Codec
	if codec == "" {
		codec = EncoderX264
	}
	args := []string{"-c:v", codec, "-pix_fmt", "yuv420p"}

	switch codec {
	case EncoderVideoToolbox:
		args = append(args, "-b:v", fmt.Sprintf("%dk", e.quality()*100))
	case EncoderNVENC:
		args = append(args, "-cq", strconv.Itoa(e.quality()))
	default:
		preset := e.Preset
		if preset == "" {
			preset = "fast"
		}
		args = append(args, "-preset", preset, "-crf", strconv.Itoa(e.quality()))
	}
	return args
}
