// Package ingest builds the retained title set and its acting credits from
// row sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// RowSource is anything that yields rows. *rowsource.Reader satisfies it.
type RowSource interface {
	Rows() iter.Seq2[rowsource.Row, error]
}

// CapMode selects what a row cap counts.
type CapMode string

const (
	// CapRows counts every data row consumed, including malformed,
	// duplicate and non-matching rows.
	CapRows CapMode = "rows"
	// CapRetained counts only rows that were accepted: distinct titles for
	// the title filter, acting credits for the credit collector.
	CapRetained CapMode = "retained"
)

// ParseCapMode maps a config string to a CapMode, defaulting to CapRows.
func ParseCapMode(s string) CapMode {
	if CapMode(s) == CapRetained {
		return CapRetained
	}
	return CapRows
}

// Limit bounds how much of a source is consumed. Max <= 0 means unbounded.
type Limit struct {
	Max  int
	Mode CapMode
}

func (l Limit) reached(rows, accepted int) bool {
	if l.Max <= 0 {
		return false
	}
	if l.Mode == CapRetained {
		return accepted >= l.Max
	}
	return rows >= l.Max
}

// Report summarises one pass over a source.
type Report struct {
	Dataset  string        `json:"dataset"`
	Path     string        `json:"path,omitempty"`
	RowsRead int           `json:"rows_read"`
	Accepted int           `json:"accepted"`
	Skipped  int           `json:"skipped"`
	Ignored  int           `json:"ignored"`
	Capped   bool          `json:"capped"`
	Duration time.Duration `json:"duration_ns"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d rows, %d accepted, %d skipped, %d ignored", r.Dataset, r.RowsRead, r.Accepted, r.Skipped, r.Ignored)
}

// Hooks observe ingest as it happens. All fields are optional.
type Hooks struct {
	// OnSkip is called for each malformed row.
	OnSkip func(err error)
	// OnRow is called after each consumed row with the running row count.
	OnRow func(rows int)
}

func (h Hooks) skip(err error) {
	if h.OnSkip != nil {
		h.OnSkip(err)
	}
}

func (h Hooks) row(n int) {
	if h.OnRow != nil {
		h.OnRow(n)
	}
}

// cancelCheckEvery is how many rows pass between context checks.
const cancelCheckEvery = 4096

func cancelled(ctx context.Context, rows int) error {
	if rows%cancelCheckEvery != 0 {
		return nil
	}
	return ctx.Err()
}

// isHeaderError reports a malformed header row. It is logged but is not a
// data row, so it counts toward neither caps nor row totals.
func isHeaderError(err error) bool {
	var rerr *rowsource.RowError
	return errors.As(err, &rerr) && rerr.Header
}

// malformedField reports a row that parsed but lacks a required field.
func malformedField(path string, row rowsource.Row, field string) error {
	return &rowsource.RowError{Path: path, Line: row.Line, Cause: fmt.Errorf("missing or empty %s", field)}
}

func sourcePath(src RowSource) string {
	if p, ok := src.(interface{ Path() string }); ok {
		return p.Path()
	}
	return ""
}
