// Package system wraps host resources: ffmpeg binaries, file limits, CPU
// counts, scratch directories and output locks.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrResource marks failures to acquire a host resource.
var ErrResource = errors.New("resource")

// Binaries names the ffmpeg executables to invoke.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// DefaultBinaries resolves both tools from PATH.
func DefaultBinaries() Binaries {
	return Binaries{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

func (b Binaries) withDefaults() Binaries {
	if strings.TrimSpace(b.FFmpeg) == "" {
		b.FFmpeg = "ffmpeg"
	}
	if strings.TrimSpace(b.FFprobe) == "" {
		b.FFprobe = "ffprobe"
	}
	return b
}

// InitResourceLimits raises the soft open file limit to 2048.
func InitResourceLimits(logger *slog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not read open file limit", slog.Any("error", err))
		return
	}
	if rLimit.Cur >= 2048 {
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not raise open file limit", slog.Any("error", err))
		return
	}
	logger.Debug("open file limit raised", slog.Uint64("limit", uint64(rLimit.Cur)))
}

// DefaultWorkers returns the number of logical CPUs.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// HostInfo is a short hardware summary for diagnostics.
type HostInfo struct {
	LogicalCPUs  int
	PhysicalCPUs int
	TotalMemory  uint64
	FreeMemory   uint64
}

// Host collects HostInfo. Fields that cannot be read stay zero.
func Host(ctx context.Context) HostInfo {
	var info HostInfo
	info.LogicalCPUs, _ = cpu.CountsWithContext(ctx, true)
	info.PhysicalCPUs, _ = cpu.CountsWithContext(ctx, false)
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = vm.Total
		info.FreeMemory = vm.Available
	}
	return info
}

func ffmpegList(ctx context.Context, ffmpeg, flag string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpeg, "-hide_banner", flag)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w", ffmpeg, flag, err)
	}
	return out.String(), nil
}

// CheckFilterSupport reports whether ffmpeg was built with the named filter.
func CheckFilterSupport(ctx context.Context, ffmpeg, filter string) bool {
	out, err := ffmpegList(ctx, ffmpeg, "-filters")
	if err != nil {
		return false
	}
	return hasListedName(out, filter)
}

// CheckEncoderSupport reports whether ffmpeg lists the named encoder.
func CheckEncoderSupport(ctx context.Context, ffmpeg, encoder string) bool {
	out, err := ffmpegList(ctx, ffmpeg, "-encoders")
	if err != nil {
		return false
	}
	return hasListedName(out, encoder)
}

// hasListedName scans "-filters"/"-encoders" output, where the name is the
// second column.
func hasListedName(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// BestH264Encoder picks a hardware H.264 encoder when one is available,
// otherwise libx264. Preference: VideoToolbox, NVENC, software.
func BestH264Encoder(ctx context.Context, ffmpeg string) string {
	out, err := ffmpegList(ctx, ffmpeg, "-encoders")
	if err != nil {
		return "libx264"
	}
	for _, enc := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if hasListedName(out, enc) {
			return enc
		}
	}
	return "libx264"
}
