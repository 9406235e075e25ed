package temporal

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
)

// DefaultRunTimeout bounds a single build activity when the input sets none.
const DefaultRunTimeout = 30 * time.Minute

// BuildInput holds the workflow parameters. Paths are resolved on the worker.
type BuildInput struct {
	TitlesPath  string
	CreditsPath string

	MaxTitleRows  int
	MaxCreditRows int
	CapMode       string
	Concurrent    bool

	CountDuplicateCredits bool
	MaxCastSize           int

	// Export is skipped when ExportFormat is empty.
	ExportFormat string
	ExportPath   string
	EdgeLabels   bool

	RunTimeout time.Duration
}

// BuildOutput holds the workflow result.
type BuildOutput struct {
	Stats          graph.Stats
	Titles         ingest.Report
	Credits        ingest.Report
	RetainedTitles int
	ActingCredits  int
	ExportFormat   string
	ExportPath     string
	Duration       time.Duration
}

// CastGraphWorkflow runs one build as a single activity. Builds are not
// retried: bad input and consistency failures are deterministic.
func CastGraphWorkflow(ctx workflow.Context, input BuildInput) (*BuildOutput, error) {
	timeout := input.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("build started", "titles", input.TitlesPath, "credits", input.CreditsPath)

	var a *Activities
	var out BuildOutput
	if err := workflow.ExecuteActivity(ctx, a.BuildGraph, input).Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	logger.Info("build finished", "nodes", out.Stats.Nodes, "edges", out.Stats.Edges, "components", out.Stats.Components)
	return &out, nil
}
