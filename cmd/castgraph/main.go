package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	temporalclient "go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/efebarandurmaz/castgraph/internal/config"
	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/metrics"
	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/pipeline"
	"github.com/efebarandurmaz/castgraph/internal/secrets"
	"github.com/efebarandurmaz/castgraph/internal/temporal"
)

var version = "dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "castgraph",
		Short:         "Build and analyse actor co-credit graphs from IMDb datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errConfig, err)
	})
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional)")

	var jsonReport bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Build the co-credit graph and print its analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), cfg, jsonReport, stdout, stderr)
		},
	}
	addBuildFlags(runCmd.Flags())
	runCmd.Flags().BoolVar(&jsonReport, "json", false, "Print the run report as JSON")

	var submitJSON bool
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Run the build as a Temporal workflow and wait for the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return submitBuild(cmd.Context(), cfg, submitJSON, stdout, stderr)
		},
	}
	addBuildFlags(submitCmd.Flags())
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Print the run report as JSON")

	formatsCmd := &cobra.Command{
		Use:   "formats",
		Short: "List export formats",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(stdout, "Available export formats:")
			for _, f := range export.RegistryWithStores(export.Neo4jConfig{}).Formats() {
				dest := export.DefaultPath(f)
				if dest == "" {
					dest = "(neo4j.uri)"
				}
				fmt.Fprintf(stdout, "  %-10s %s\n", f, dest)
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "castgraph %s\n", version)
		},
	}

	root.AddCommand(runCmd, submitCmd, formatsCmd, versionCmd)
	return root
}

// addBuildFlags declares the flags listed in config.FlagKeys.
func addBuildFlags(f *pflag.FlagSet) {
	f.String("titles", "", "Titles TSV (title.basics.tsv)")
	f.String("credits", "", "Credits TSV (title.principals.tsv)")
	f.Int("max-title-rows", 0, "Stop after this many title rows (0 = all)")
	f.Int("max-credit-rows", 0, "Stop after this many credit rows (0 = all)")
	f.String("cap-mode", "rows", "What row caps count: rows or retained")
	f.Bool("concurrent", false, "Read both input files at once")
	f.Bool("count-duplicates", false, "Count repeated credits of one person on a title")
	f.Bool("export", false, "Export the graph")
	f.String("format", "dot", "Export format (see 'castgraph formats')")
	f.String("output", "", "Export destination, '-' for stdout")
	f.Bool("edge-labels", false, "Show edge weights as labels")
	f.Bool("verbose", false, "Log every retained title and credit")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	f.String("audit-log", "", "Append build events as JSON lines to this file")
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	// Choosing a format or destination implies export.
	f := cmd.Flags()
	if f.Changed("format") || f.Changed("output") {
		cfg.Export.Enabled = true
	}
	if err := cfg.RequireInputs(); err != nil {
		return nil, err
	}
	if cfg.Export.Enabled && cfg.Export.Format == "neo4j" {
		if err := secrets.Resolve(cmd.Context(), cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", errConfig, err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Log.Level
	if cfg.Log.Verbose {
		level = "debug"
	}
	logger := observability.NewLogger(w, level, cfg.Log.Format)
	slog.SetDefault(logger)
	for _, warning := range cfg.Validate() {
		logger.Warn("config", "warning", warning)
	}
	return logger
}

func runBuild(ctx context.Context, cfg *config.Config, jsonReport bool, stdout, stderr io.Writer) error {
	logger := newLogger(cfg, stderr)
	ctx = observability.WithLogger(ctx, logger)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	audit, err := observability.NewAuditLogger(observability.AuditConfig{Path: cfg.Log.AuditPath})
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer audit.Close()

	m := observability.NewPipelineMetrics()
	opts := pipeline.OptionsFromConfig(cfg)
	opts.Registry = export.RegistryWithStores(neo4jConfig(cfg))
	opts.Metrics = m
	opts.Audit = audit
	if opts.Export != nil {
		opts.Export.Stdout = stdout
	}

	res, report, runErr := pipeline.RunWithReport(ctx, opts)
	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile not written", "path", path, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	return printReport(report, res.ExportPath, cfg, jsonReport, stdout, stderr)
}

func submitBuild(ctx context.Context, cfg *config.Config, jsonReport bool, stdout, stderr io.Writer) error {
	logger := newLogger(cfg, stderr)

	// The worker resolves paths against its own working directory.
	for _, p := range []*string{&cfg.Input.TitlesPath, &cfg.Input.CreditsPath, &cfg.Export.Path} {
		if *p == "" || *p == "-" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("%w: %w", errConfig, err)
		}
		*p = abs
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	logger.Info("submitting build", "task_queue", cfg.Temporal.TaskQueue)
	out, err := temporal.Submit(ctx, c, cfg.Temporal.TaskQueue, temporal.BuildInputFromConfig(cfg))
	if err != nil {
		return err
	}
	return printReport(reportFromOutput(out), out.ExportPath, cfg, jsonReport, stdout, stderr)
}

func reportFromOutput(out *temporal.BuildOutput) *metrics.RunReport {
	r := &metrics.RunReport{
		Duration:       out.Duration,
		Titles:         out.Titles,
		Credits:        out.Credits,
		RetainedTitles: out.RetainedTitles,
		ActingCredits:  out.ActingCredits,
		Graph:          out.Stats,
	}
	if out.ExportFormat != "" {
		r.Export = &metrics.ExportMetrics{Format: out.ExportFormat, Path: out.ExportPath}
	}
	return r
}

func printReport(report *metrics.RunReport, exportPath string, cfg *config.Config, jsonReport bool, stdout, stderr io.Writer) error {
	// The graph itself owns stdout when exported there.
	w := stdout
	if exportPath == "-" {
		w = stderr
	}

	if jsonReport {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	report.PrintSummary(w)
	if report.Export != nil && exportPath != "-" {
		dest := exportPath
		if dest == "" {
			dest = cfg.Neo4j.URI
		}
		fmt.Fprintf(w, "Graph saved to %s\n", dest)
	}
	return nil
}

func neo4jConfig(cfg *config.Config) export.Neo4jConfig {
	return export.Neo4jConfig{
		URI:       cfg.Neo4j.URI,
		Username:  cfg.Neo4j.Username,
		Password:  cfg.Neo4j.Password,
		BatchSize: cfg.Neo4j.BatchSize,
	}
}
