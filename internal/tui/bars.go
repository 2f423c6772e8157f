package tui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"squeeze/internal/pipeline"
)

// RunBars renders updates as a plain progress bar on out until updates is
// closed. It suits non-interactive terminals where the full-screen model
// does not.
func RunBars(updates <-chan pipeline.ProgressUpdate, out io.Writer) {
	progress := mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	var failed atomic.Int64
	bar := progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("Images", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Any(func(decor.Statistics) string {
				if n := failed.Load(); n > 0 {
					return fmt.Sprintf("  %d failed", n)
				}
				return ""
			}),
		),
	)

	var total int64
	for u := range updates {
		if u.TotalDelta != 0 {
			total += int64(u.TotalDelta)
			bar.SetTotal(total, false)
		}
		if u.ErrorDelta != 0 {
			failed.Add(int64(u.ErrorDelta))
		}
		if n := u.ProcessedDelta + u.ErrorDelta; n > 0 {
			bar.IncrBy(n)
		}
	}

	// Complete at whatever count was reached; a canceled run stops short.
	bar.SetTotal(-1, true)
	progress.Wait()
}

// Drain discards updates until the channel is closed.
func Drain(updates <-chan pipeline.ProgressUpdate) {
	for range updates {
	}
}
