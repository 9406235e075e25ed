package temporal

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/pipeline"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// Application error types carried by failed builds.
const (
	ErrTypeInputOpen           = "InputOpen"
	ErrTypeInternalConsistency = "InternalConsistency"
	ErrTypeCastTooLarge        = "CastTooLarge"
	ErrTypeUnknownFormat       = "UnknownFormat"
	ErrTypeStdoutUnsupported   = "StdoutUnsupported"
)

// Activities holds the worker-side resources shared by every build.
type Activities struct {
	// Base supplies row parsing, progress, metrics and the export registry.
	// Per-build settings come from BuildInput.
	Base   pipeline.Options
	Logger *slog.Logger
}

// Options merges a build input over the worker's base options.
func (a *Activities) Options(input BuildInput) pipeline.Options {
	opts := a.Base
	mode := ingest.ParseCapMode(input.CapMode)
	opts.TitlesPath = input.TitlesPath
	opts.CreditsPath = input.CreditsPath
	opts.TitleLimit = ingest.Limit{Max: max(input.MaxTitleRows, 0), Mode: mode}
	opts.CreditLimit = ingest.Limit{Max: max(input.MaxCreditRows, 0), Mode: mode}
	opts.Concurrent = input.Concurrent
	opts.Graph = graph.Options{
		CountDuplicateCredits: input.CountDuplicateCredits,
		MaxCastSize:           input.MaxCastSize,
	}
	opts.Export = nil
	if input.ExportFormat != "" {
		opts.Export = &pipeline.ExportOptions{
			Format:     input.ExportFormat,
			Path:       input.ExportPath,
			EdgeLabels: input.EdgeLabels,
		}
	}
	return opts
}

// BuildGraph runs a full build on the worker.
func (a *Activities) BuildGraph(ctx context.Context, input BuildInput) (*BuildOutput, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	info := activity.GetInfo(ctx)
	logger = logger.With("workflow_id", info.WorkflowExecution.ID, "activity", info.ActivityType.Name)
	ctx = observability.WithLogger(ctx, logger)

	opts := a.Options(input)
	opts.Audit = opts.Audit.WithRunID(info.WorkflowExecution.ID)
	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return nil, classify(err)
	}

	out := &BuildOutput{
		Stats:          res.Stats,
		Titles:         res.Report.Titles,
		Credits:        res.Report.Credits,
		RetainedTitles: res.Report.RetainedTitles,
		ActingCredits:  res.Report.ActingCredits,
		ExportPath:     res.ExportPath,
		Duration:       res.Report.Duration,
	}
	if res.Report.Export != nil {
		out.ExportFormat = res.Report.Export.Format
	}
	return out, nil
}

// classify marks deterministic failures as non-retryable with a stable type
// so clients can tell them apart after the workflow boundary.
func classify(err error) error {
	var openErr *rowsource.OpenError
	switch {
	case errors.As(err, &openErr):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInputOpen, err)
	case errors.Is(err, graph.ErrInternalConsistency):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInternalConsistency, err)
	case errors.Is(err, graph.ErrCastTooLarge):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeCastTooLarge, err)
	case errors.Is(err, export.ErrUnknownFormat):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownFormat, err)
	case errors.Is(err, export.ErrStdoutUnsupported):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeStdoutUnsupported, err)
	}
	return err
}

// ErrorType returns the build failure type carried anywhere in err's cause
// chain, or "" when the failure is not one of the ErrType constants.
func ErrorType(err error) string {
	for err != nil {
		var appErr *sdktemporal.ApplicationError
		if !errors.As(err, &appErr) {
			return ""
		}
		switch t := appErr.Type(); t {
		case ErrTypeInputOpen, ErrTypeInternalConsistency, ErrTypeCastTooLarge, ErrTypeUnknownFormat, ErrTypeStdoutUnsupported:
			return t
		}
		err = appErr.Unwrap()
	}
	return ""
}
