package commands

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/biterate/socialagent/internal/indexer"
)

// syncProgress draws a bar on stderr while documents are ingested
type syncProgress struct {
	bar *progressbar.ProgressBar
}

func progressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Report matches indexer.SyncRequest.OnProgress. The bar is created on the
// first report, once the total is known.
func (p *syncProgress) Report(progress indexer.Progress) {
	if progress.Total <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(progress.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("syncing"),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.bar.Set(progress.Done)
}

func (p *syncProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
