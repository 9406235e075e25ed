package observability

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Progress emits throttled progress lines for a long-running scan.
type Progress struct {
	logger  *slog.Logger
	dataset string
	every   rate.Sometimes
}

// NewProgress logs at most once per interval. A non-positive interval
// disables progress lines.
func NewProgress(logger *slog.Logger, dataset string, interval time.Duration) *Progress {
	p := &Progress{logger: logger, dataset: dataset}
	if interval > 0 {
		p.every = rate.Sometimes{Interval: interval}
	}
	return p
}

// Tick reports that rows rows have been consumed so far.
func (p *Progress) Tick(rows int) {
	if p == nil || p.every.Interval <= 0 {
		return
	}
	p.every.Do(func() {
		p.logger.Info("ingest progress", "dataset", p.dataset, "rows", rows)
	})
}

// Done logs the final count unconditionally.
func (p *Progress) Done(rows, accepted int) {
	if p == nil {
		return
	}
	p.logger.Info("ingest complete", "dataset", p.dataset, "rows", rows, "accepted", accepted)
}
