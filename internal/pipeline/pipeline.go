// Package pipeline runs a full castgraph build: open inputs, ingest, project,
// analyse and optionally export.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/castgraph/internal/config"
	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
	"github.com/efebarandurmaz/castgraph/internal/metrics"
	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/rowsource"
)

// Stage is one step of a build.
type Stage interface {
	// Name returns the stage identifier used in spans, metrics and reports.
	Name() string
	// Run executes the stage against the shared state.
	Run(ctx context.Context, st *State) error
}

// ExportOptions selects an export sink. A nil *ExportOptions skips export.
type ExportOptions struct {
	Format     string
	Path       string
	EdgeLabels bool
	// Stdout receives the graph when Path is "-".
	Stdout io.Writer
}

// Options configures a build.
type Options struct {
	TitlesPath  string
	CreditsPath string
	Source      rowsource.Options

	TitleLimit  ingest.Limit
	CreditLimit ingest.Limit
	Concurrent  bool

	Graph graph.Options

	Export   *ExportOptions
	Registry *export.Registry

	ProgressInterval time.Duration
	Metrics          *observability.PipelineMetrics
	// Audit receives build events. Nil disables the trail.
	Audit *observability.AuditLogger
}

// OptionsFromConfig maps configuration onto build options. The export
// registry is left for the caller to supply.
func OptionsFromConfig(cfg *config.Config) Options {
	mode := ingest.ParseCapMode(cfg.Limits.CapMode)
	opts := Options{
		TitlesPath:  cfg.Input.TitlesPath,
		CreditsPath: cfg.Input.CreditsPath,
		Source: rowsource.Options{
			Delimiter:  cfg.DelimiterRune(),
			HasHeader:  cfg.Input.HasHeader,
			Quoting:    cfg.Input.Quoting,
			LazyQuotes: cfg.Input.LazyQuotes,
		},
		TitleLimit:  ingest.Limit{Max: max(cfg.Limits.MaxTitleRows, 0), Mode: mode},
		CreditLimit: ingest.Limit{Max: max(cfg.Limits.MaxCreditRows, 0), Mode: mode},
		Concurrent:  cfg.Input.Concurrent,
		Graph: graph.Options{
			CountDuplicateCredits: cfg.Graph.CountDuplicateCredits,
			MaxCastSize:           cfg.Graph.MaxCastSize,
		},
		ProgressInterval: cfg.Log.ProgressInterval,
	}
	if cfg.Export.Enabled {
		opts.Export = &ExportOptions{
			Format:     cfg.Export.Format,
			Path:       cfg.Export.Path,
			EdgeLabels: cfg.Export.EdgeLabels,
		}
	}
	return opts
}

// State is owned by a single Run and handed from stage to stage.
type State struct {
	Options Options

	Titles  *rowsource.Reader
	Credits *rowsource.Reader

	Loaded *ingest.Result
	Graph  *graph.Graph
	Stats  graph.Stats

	ExportPath string

	Report  *metrics.RunReport
	Metrics *observability.PipelineMetrics
}

// Result is the outcome of a successful build.
type Result struct {
	Graph      *graph.Graph
	Stats      graph.Stats
	Report     *metrics.RunReport
	ExportPath string
}

// Stages returns the stages Run executes for opts, in order.
func Stages(opts Options) []Stage {
	stages := []Stage{openStage{}, ingestStage{}, projectStage{}, analyzeStage{}}
	if opts.Export != nil {
		stages = append(stages, exportStage{})
	}
	return stages
}

// Run executes a full build.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res, _, err := RunWithReport(ctx, opts)
	return res, err
}

// RunWithReport is Run but also returns the run report, populated up to the
// failing stage when the build fails.
func RunWithReport(ctx context.Context, opts Options) (*Result, *metrics.RunReport, error) {
	if opts.Metrics == nil {
		opts.Metrics = observability.NewPipelineMetrics()
	}
	if opts.Export != nil && opts.Registry == nil {
		opts.Registry = export.DefaultRegistry()
	}

	st := &State{
		Options: opts,
		Report:  metrics.New(),
		Metrics: opts.Metrics,
	}
	defer st.closeInputs()

	logger := observability.LoggerFrom(ctx)
	if err := checkExportDestination(opts); err != nil {
		st.Report.Finish([]string{err.Error()})
		logger.Error("build rejected", "err", err)
		return nil, st.Report, err
	}
	opts.Audit.LogBuildStart(opts.TitlesPath, opts.CreditsPath)
	for _, stage := range Stages(opts) {
		if err := runStage(ctx, stage, st); err != nil {
			st.Report.Finish([]string{err.Error()})
			st.Metrics.RecordRun(err)
			opts.Audit.LogBuildEnd(st.Report.Duration, 0, 0, 0, err)
			logger.Error("build failed", "stage", stage.Name(), "err", err)
			return nil, st.Report, err
		}
	}

	st.Report.Finish(nil)
	st.Metrics.RecordRun(nil)
	opts.Audit.LogBuildEnd(st.Report.Duration, st.Stats.Nodes, st.Stats.Edges, st.Stats.Components, nil)
	logger.Info("build complete",
		"nodes", st.Stats.Nodes,
		"edges", st.Stats.Edges,
		"components", st.Stats.Components,
		"duration", st.Report.Duration)

	return &Result{
		Graph:      st.Graph,
		Stats:      st.Stats,
		Report:     st.Report,
		ExportPath: st.ExportPath,
	}, st.Report, nil
}

// checkExportDestination fails before ingest when the export cannot be
// written where it is pointed. An unknown format is left to the export stage.
func checkExportDestination(opts Options) error {
	if opts.Export == nil {
		return nil
	}
	sink, err := opts.Registry.Sink(opts.Export.Format)
	if err != nil {
		return nil
	}
	if err := export.CheckDestination(sink, opts.Export.Path); err != nil {
		return fmt.Errorf("export %s: %w", opts.Export.Format, err)
	}
	return nil
}

func runStage(ctx context.Context, stage Stage, st *State) error {
	ctx, span := observability.StartStageSpan(ctx, stage.Name())
	defer span.End()

	start := time.Now()
	err := stage.Run(ctx, st)
	d := time.Since(start)

	st.Report.AddStage(stage.Name(), d, err)
	st.Metrics.ObserveStage(stage.Name(), d)
	st.Options.Audit.LogStage(stage.Name(), d, err)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("%s: %w", stage.Name(), err)
	}
	return nil
}

func (st *State) closeInputs() {
	if st.Titles != nil {
		st.Titles.Close()
	}
	if st.Credits != nil {
		st.Credits.Close()
	}
}
