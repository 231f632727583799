package system

import (
	"context"
	"fmt"
	"os/exec"
)

// RequiredFilters are the ffmpeg filters a render uses.
var RequiredFilters = []string{"zoompan", "xfade", "acrossfade", "aevalsrc", "concat"}

// Check is one preflight result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Preflight verifies the binaries exist and ffmpeg supports every required
// filter and the chosen encoder.
func Preflight(ctx context.Context, bins Binaries, encoder string) []Check {
	bins = bins.withDefaults()
	var checks []Check

	ffmpegOK := true
	for _, bin := range []string{bins.FFmpeg, bins.FFprobe} {
		path, err := exec.LookPath(bin)
		if err != nil {
			checks = append(checks, Check{Name: bin, Detail: "not found in PATH"})
			if bin == bins.FFmpeg {
				ffmpegOK = false
			}
			continue
		}
		checks = append(checks, Check{Name: bin, OK: true, Detail: path})
	}
	if !ffmpegOK {
		return checks
	}

	for _, f := range RequiredFilters {
		ok := CheckFilterSupport(ctx, bins.FFmpeg, f)
		detail := "available"
		if !ok {
			detail = "missing from ffmpeg build"
		}
		checks = append(checks, Check{Name: "filter " + f, OK: ok, Detail: detail})
	}

	if encoder == "" || encoder == "auto" {
		encoder = BestH264Encoder(ctx, bins.FFmpeg)
	}
	ok := CheckEncoderSupport(ctx, bins.FFmpeg, encoder)
	detail := "available"
	if !ok {
		detail = "missing from ffmpeg build"
	}
	checks = append(checks, Check{Name: "encoder " + encoder, OK: ok, Detail: detail})
	return checks
}

// FirstFailure returns an error for the first failed check, or nil.
func FirstFailure(checks []Check) error {
	for _, c := range checks {
		if !c.OK {
			return fmt.Errorf("preflight %s: %s", c.Name, c.Detail)
		}
	}
	return nil
}
