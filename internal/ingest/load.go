package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Options configures Load.
type Options struct {
	TitleLimit  Limit
	CreditLimit Limit
	// Concurrent reads both files at once. Hooks must then be safe to call
	// from separate goroutines.
	Concurrent  bool
	TitleHooks  Hooks
	CreditHooks Hooks
}

// Result is the outcome of Load.
type Result struct {
	Titles  *TitleSet
	Title   Report
	Credits Report
}

// Load runs the title filter then the credit collector. With Concurrent set
// the two files are scanned in parallel and credits are joined afterwards,
// which yields exactly the same titles and cast order as the sequential path.
func Load(ctx context.Context, titles, credits RowSource, opts Options) (*Result, error) {
	filter := &TitleFilter{Limit: opts.TitleLimit, Hooks: opts.TitleHooks}
	collector := &CreditCollector{Limit: opts.CreditLimit, Hooks: opts.CreditHooks}

	// A retained-credit cap depends on the finished title set.
	if !opts.Concurrent || (opts.CreditLimit.Mode == CapRetained && opts.CreditLimit.Max > 0) {
		set, trep, err := filter.Filter(ctx, titles)
		if err != nil {
			return nil, fmt.Errorf("filter titles: %w", err)
		}
		crep, err := collector.Collect(ctx, credits, set)
		if err != nil {
			return nil, fmt.Errorf("collect credits: %w", err)
		}
		return &Result{Titles: set, Title: trep, Credits: crep}, nil
	}

	var (
		set     *TitleSet
		trep    Report
		crep    Report
		pending []credit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		set, trep, err = filter.Filter(gctx, titles)
		if err != nil {
			return fmt.Errorf("filter titles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		crep, err = collector.scan(gctx, credits, func(cr credit) bool {
			if !cr.acting {
				return false
			}
			pending = append(pending, cr)
			return true
		})
		if err != nil {
			return fmt.Errorf("collect credits: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The scan counted every acting credit as accepted; settle against the
	// retained titles now.
	crep.Ignored += len(pending)
	crep.Accepted -= len(pending)
	for _, cr := range pending {
		if set.AddCredit(cr.title, cr.person) {
			crep.Accepted++
			crep.Ignored--
		}
	}
	return &Result{Titles: set, Title: trep, Credits: crep}, nil
}
