package cmd

import (
	"fmt"
	"os"

	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/schollz/progressbar/v3"
)

// progressObserver advances a byte progress bar as source blocks are read.
type progressObserver struct {
	archiver.NopObserver
	bar *progressbar.ProgressBar
}

func newProgressObserver(total int64, description string) *progressObserver {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(progressThrottle),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	return &progressObserver{bar: bar}
}

func (p *progressObserver) BlockRead(b *archiver.Block, _ int64) {
	_ = p.bar.Add64(b.Size)
}

// done completes the bar on success and clears it otherwise.
func (p *progressObserver) done(status archiver.Status) {
	if status == archiver.Success {
		_ = p.bar.Finish()
		return
	}
	_ = p.bar.Clear()
	fmt.Fprintln(os.Stderr)
}
