package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/audioslides/internal/video"
)

// progressObserver draws a bar of rendered segments. The bar is created on
// the first event because the total is not known earlier.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (o *progressObserver) SegmentStarted(_, total int) {
	if o.bar != nil {
		return
	}
	o.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.w),
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (o *progressObserver) SegmentRendered(video.RenderedSegment) {
	if o.bar != nil {
		_ = o.bar.Add(1)
	}
}

func (o *progressObserver) SegmentFailed(int, error) {
	if o.bar != nil {
		_ = o.bar.Exit()
	}
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
