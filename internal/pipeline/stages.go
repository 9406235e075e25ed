package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
	"github.com/efebarandurmaz/castgraph/internal/metrics"
	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// openStage opens both inputs before any row is read, so a bad credits path
// fails the run without scanning titles first.
type openStage struct{}

func (openStage) Name() string { return "open" }

func (openStage) Run(_ context.Context, st *State) error {
	o := st.Options
	titles, err := rowsource.Open(o.TitlesPath, o.Source)
	if err != nil {
		return err
	}
	st.Titles = titles

	credits, err := rowsource.Open(o.CreditsPath, o.Source)
	if err != nil {
		return err
	}
	st.Credits = credits
	return nil
}

type ingestStage struct{}

func (ingestStage) Name() string { return "ingest" }

func (ingestStage) Run(ctx context.Context, st *State) error {
	o := st.Options
	logger := observability.LoggerFrom(ctx)

	titleProgress := observability.NewProgress(logger, "titles", o.ProgressInterval)
	creditProgress := observability.NewProgress(logger, "credits", o.ProgressInterval)

	_, titleSpan := observability.StartIngestSpan(ctx, "titles", st.Titles.Path())
	defer titleSpan.End()
	_, creditSpan := observability.StartIngestSpan(ctx, "credits", st.Credits.Path())
	defer creditSpan.End()

	res, err := ingest.Load(ctx, st.Titles, st.Credits, ingest.Options{
		TitleLimit:  o.TitleLimit,
		CreditLimit: o.CreditLimit,
		Concurrent:  o.Concurrent,
		TitleHooks:  ingest.Hooks{OnRow: titleProgress.Tick},
		CreditHooks: ingest.Hooks{OnRow: creditProgress.Tick},
	})
	if err != nil {
		observability.RecordError(titleSpan, err)
		observability.RecordError(creditSpan, err)
		return err
	}
	st.Loaded = res

	for _, item := range []struct {
		rep  ingest.Report
		span trace.Span
		prog *observability.Progress
	}{
		{res.Title, titleSpan, titleProgress},
		{res.Credits, creditSpan, creditProgress},
	} {
		observability.RecordIngestResult(item.span, item.rep.RowsRead, item.rep.Accepted, item.rep.Skipped, item.rep.Capped)
		st.Metrics.RecordIngest(item.rep.Dataset, item.rep.RowsRead, item.rep.Accepted, item.rep.Skipped)
		item.prog.Done(item.rep.RowsRead, item.rep.Accepted)
	}

	st.Report.Titles = res.Title
	st.Report.Credits = res.Credits
	st.Report.RetainedTitles = res.Titles.Len()
	st.Report.ActingCredits = res.Titles.Credits()
	return nil
}

type projectStage struct{}

func (projectStage) Name() string { return "project" }

func (projectStage) Run(ctx context.Context, st *State) error {
	g, err := graph.NewProjector(st.Options.Graph).Project(st.Loaded.Titles)
	if err != nil {
		return err
	}
	st.Graph = g
	observability.RecordGraphShape(trace.SpanFromContext(ctx), g.NodeCount(), g.EdgeCount())
	return nil
}

type analyzeStage struct{}

func (analyzeStage) Name() string { return "analyze" }

func (analyzeStage) Run(ctx context.Context, st *State) error {
	st.Stats = graph.Analyze(st.Graph)
	st.Report.Graph = st.Stats
	st.Metrics.RecordGraph(st.Stats.Nodes, st.Stats.Edges, st.Stats.Components, st.Stats.MaxDegree)

	logger := observability.LoggerFrom(ctx)
	if st.Stats.Nodes == 0 {
		logger.Warn("graph is empty")
	}
	return nil
}

type exportStage struct{}

func (exportStage) Name() string { return "export" }

func (exportStage) Run(ctx context.Context, st *State) error {
	eo := st.Options.Export
	sink, err := st.Options.Registry.Sink(eo.Format)
	if err != nil {
		return err
	}

	path := eo.Path
	if path == "" {
		path = export.DefaultPath(eo.Format)
	}

	ctx, span := observability.StartExportSpan(ctx, eo.Format, path)
	defer span.End()

	stats := st.Stats
	err = sink.Export(ctx, st.Graph, export.Options{
		Path:       path,
		EdgeLabels: eo.EdgeLabels,
		Stats:      &stats,
		Stdout:     eo.Stdout,
	})
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("export %s: %w", eo.Format, err)
	}

	st.ExportPath = path
	st.Report.Export = &metrics.ExportMetrics{Format: eo.Format, Path: path}
	st.Options.Audit.LogExport(eo.Format, path)
	observability.LoggerFrom(ctx).Info("graph exported", "format", eo.Format, "path", path)
	return nil
}
