package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// Credit file columns.
const (
	colTitle    = 0
	colPerson   = 2
	colCategory = 3
)

// Acting categories. Matching is exact and case-sensitive.
const (
	RoleActor   = "actor"
	RoleActress = "actress"
)

// IsActingRole reports whether category is an acting credit.
func IsActingRole(category string) bool {
	return category == RoleActor || category == RoleActress
}

// credit is one parsed credits row.
type credit struct {
	title  string
	person string
	acting bool
}

func parseCredit(path string, row rowsource.Row) (credit, error) {
	if len(row.Fields) <= colCategory {
		return credit{}, malformedField(path, row, "category")
	}
	c := credit{
		title:  row.Fields[colTitle],
		person: row.Fields[colPerson],
		acting: IsActingRole(row.Fields[colCategory]),
	}
	if c.title == "" {
		return credit{}, malformedField(path, row, "title id")
	}
	if c.person == "" {
		return credit{}, malformedField(path, row, "person id")
	}
	return c, nil
}

// CreditCollector appends acting credits to retained titles.
type CreditCollector struct {
	Limit Limit
	Hooks Hooks
}

// Collect consumes src in order and appends every acting credit whose title
// is in titles. Credits for other titles are ignored.
func (c *CreditCollector) Collect(ctx context.Context, src RowSource, titles *TitleSet) (Report, error) {
	return c.scan(ctx, src, func(cr credit) bool {
		if !cr.acting {
			return false
		}
		return titles.AddCredit(cr.title, cr.person)
	})
}

// scan walks src, calling accept for each well-formed row. accept reports
// whether the row counts as accepted.
func (c *CreditCollector) scan(ctx context.Context, src RowSource, accept func(credit) bool) (Report, error) {
	logger := observability.LoggerFrom(ctx)
	path := sourcePath(src)
	rep := Report{Dataset: "credits", Path: path}
	start := time.Now()

	for row, err := range src.Rows() {
		if err != nil && !errors.Is(err, rowsource.ErrMalformedRow) {
			rep.Duration = time.Since(start)
			return rep, err
		}
		if isHeaderError(err) {
			logger.Warn("skipping malformed header", "dataset", rep.Dataset, "error", err)
			continue
		}
		rep.RowsRead++

		if err == nil {
			var cr credit
			cr, err = parseCredit(path, row)
			if err == nil {
				if accept(cr) {
					rep.Accepted++
					logger.Debug("acting credit", "title", cr.title, "person", cr.person, "line", row.Line)
				} else {
					rep.Ignored++
				}
			}
		}
		if err != nil {
			rep.Skipped++
			c.Hooks.skip(err)
			logger.Warn("skipping malformed row", "dataset", rep.Dataset, "error", err)
		}

		c.Hooks.row(rep.RowsRead)
		if cerr := cancelled(ctx, rep.RowsRead); cerr != nil {
			rep.Duration = time.Since(start)
			return rep, cerr
		}
		if c.Limit.reached(rep.RowsRead, rep.Accepted) {
			rep.Capped = true
			break
		}
	}

	rep.Duration = time.Since(start)
	return rep, nil
}
