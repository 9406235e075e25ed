package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// TitleFilter selects the titles to retain from the titles file. Every
// title ID seen is retained; the limit bounds how far into the file it
// reads.
type TitleFilter struct {
	Limit Limit
	Hooks Hooks
}

// Filter consumes src in order and returns the retained titles.
func (f *TitleFilter) Filter(ctx context.Context, src RowSource) (*TitleSet, Report, error) {
	logger := observability.LoggerFrom(ctx)
	path := sourcePath(src)
	set := NewTitleSet()
	rep := Report{Dataset: "titles", Path: path}
	start := time.Now()

	for row, err := range src.Rows() {
		if err != nil && !errors.Is(err, rowsource.ErrMalformedRow) {
			rep.Duration = time.Since(start)
			return nil, rep, err
		}
		if isHeaderError(err) {
			logger.Warn("skipping malformed header", "dataset", rep.Dataset, "error", err)
			continue
		}
		rep.RowsRead++

		if err == nil {
			id, _ := row.Field(0)
			if id == "" {
				err = malformedField(path, row, "title id")
			} else if set.Retain(id) {
				rep.Accepted++
				logger.Debug("title retained", "title", id, "line", row.Line)
			} else {
				rep.Ignored++
			}
		}
		if err != nil {
			rep.Skipped++
			f.Hooks.skip(err)
			logger.Warn("skipping malformed row", "dataset", rep.Dataset, "error", err)
		}

		f.Hooks.row(rep.RowsRead)
		if cerr := cancelled(ctx, rep.RowsRead); cerr != nil {
			rep.Duration = time.Since(start)
			return nil, rep, cerr
		}
		if f.Limit.reached(rep.RowsRead, rep.Accepted) {
			rep.Capped = true
			break
		}
	}

	rep.Duration = time.Since(start)
	return set, rep, nil
}
