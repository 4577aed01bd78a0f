package main

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"chronicle/internal/enrich"
)

// attachProgress wires a terminal progress bar into the enrichment pipeline.
// Non-terminal output (pipes, CI) gets none; the structured log already
// covers that case.
func attachProgress(out io.Writer, pipeline *enrich.Pipeline) {
	if !isTerminal(out) {
		return
	}

	var bar *progressbar.ProgressBar
	pipeline.OnProgress(func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription("enriching"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	})
}
