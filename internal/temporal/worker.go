package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/efebarandurmaz/castgraph/internal/config"
)

// StartWorker creates and starts a Temporal worker hosting the build workflow.
func StartWorker(c client.Client, taskQueue string, acts *Activities) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(CastGraphWorkflow)
	w.RegisterActivity(acts)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// BuildInputFromConfig maps the per-build parts of cfg onto a workflow input.
func BuildInputFromConfig(cfg *config.Config) BuildInput {
	in := BuildInput{
		TitlesPath:            cfg.Input.TitlesPath,
		CreditsPath:           cfg.Input.CreditsPath,
		MaxTitleRows:          cfg.Limits.MaxTitleRows,
		MaxCreditRows:         cfg.Limits.MaxCreditRows,
		CapMode:               cfg.Limits.CapMode,
		Concurrent:            cfg.Input.Concurrent,
		CountDuplicateCredits: cfg.Graph.CountDuplicateCredits,
		MaxCastSize:           cfg.Graph.MaxCastSize,
		RunTimeout:            cfg.Temporal.RunTimeout,
	}
	if cfg.Export.Enabled {
		in.ExportFormat = cfg.Export.Format
		in.ExportPath = cfg.Export.Path
		in.EdgeLabels = cfg.Export.EdgeLabels
	}
	return in
}

// Submit starts a build workflow and waits for its result.
func Submit(ctx context.Context, c client.Client, taskQueue string, input BuildInput) (*BuildOutput, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("castgraph-%d", time.Now().UnixNano()),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, CastGraphWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("starting workflow: %w", err)
	}

	var out BuildOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	return &out, nil
}
