package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/cutzel/oracle-postprocess/pkg/config"
	"github.com/cutzel/oracle-postprocess/pkg/rbxlx"
)

// progressReporter renders the decompilation progress. Interactive runs get
// a progress bar; CI and JSON logging get one log line per tick instead so
// the output stays grep-able. The total grows while the reader discovers
// scripts, so the bar's max is adjusted on every report.
type progressReporter struct {
	bar     *progressbar.ProgressBar
	tracker *rbxlx.RateTracker
	plain   bool
	last    int
}

func newProgressReporter(cfg *config.Config) *progressReporter {
	return &progressReporter{
		tracker: rbxlx.NewRateTracker(),
		plain:   cfg.Log.JSON || os.Getenv("CI") == "true",
	}
}

func (p *progressReporter) Report(done, total int) {
	if total == 0 {
		return
	}

	p.tracker.Track(done - p.last)
	p.last = done

	if p.plain {
		log.Info().
			Int("done", done).
			Int("total", total).
			Msgf("Decompiled %d/%d scripts (%.0f%%, %.1f/s)",
				done, total, float64(done)/float64(total)*100, p.tracker.GetRate())
		return
	}

	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("     decompile"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				_, _ = os.Stderr.WriteString("\n")
			}))
	}

	p.bar.ChangeMax(total)
	_ = p.bar.Set(done)
}

// Finish clears a partially drawn bar once the run is over.
func (p *progressReporter) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
