package main

import (
	"context"
	"fmt"
	"os"

	temporalclient "go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/efebarandurmaz/castgraph/internal/config"
	"github.com/efebarandurmaz/castgraph/internal/export"
	"github.com/efebarandurmaz/castgraph/internal/observability"
	"github.com/efebarandurmaz/castgraph/internal/pipeline"
	"github.com/efebarandurmaz/castgraph/internal/secrets"
	"github.com/efebarandurmaz/castgraph/internal/server"
	temporalmod "github.com/efebarandurmaz/castgraph/internal/temporal"
)

var version = "dev"

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx := observability.WithLogger(context.Background(), logger)
	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}
	if err := secrets.Resolve(ctx, cfg); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName + "-worker",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	// One registry for the process so /metrics accumulates across builds.
	m := observability.NewPipelineMetrics()
	neo := export.Neo4jConfig{
		URI:       cfg.Neo4j.URI,
		Username:  cfg.Neo4j.Username,
		Password:  cfg.Neo4j.Password,
		BatchSize: cfg.Neo4j.BatchSize,
	}
	audit, err := observability.NewAuditLogger(observability.AuditConfig{Path: cfg.Log.AuditPath})
	if err != nil {
		return err
	}
	defer audit.Close()

	base := pipeline.OptionsFromConfig(cfg)
	base.Registry = export.RegistryWithStores(neo)
	base.Metrics = m
	base.Audit = audit
	acts := &temporalmod.Activities{Base: base, Logger: logger}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, acts)
	if err != nil {
		c.Close()
		return err
	}

	shutdownCfg := server.DefaultShutdownConfig()
	shutdownCfg.Logger = logger
	gs := server.NewGracefulServer(&server.HealthConfig{Version: version, Metrics: m.Handler()}, shutdownCfg)
	gs.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	if cfg.Export.Format == "neo4j" {
		gs.Health.RegisterCheck("neo4j", server.SinkHealthChecker("neo4j", func(ctx context.Context) error {
			return export.CheckNeo4j(ctx, neo)
		}))
	}

	gs.RegisterHook(server.TemporalWorkerShutdownHook(w.Stop))
	if path := cfg.Metrics.TextfilePath; path != "" {
		gs.RegisterHook(server.MetricsShutdownHook(func(context.Context) error {
			return m.WriteTextfile(path)
		}))
	}
	gs.RegisterHook(server.TracingShutdownHook(tp.Shutdown))
	gs.RegisterHook(server.ClientShutdownHook("temporal-client", c.Close))

	gs.Start(cfg.Temporal.HealthAddr)
	gs.Health.SetReady(true)
	logger.Info("worker started",
		"task_queue", cfg.Temporal.TaskQueue,
		"health_addr", cfg.Temporal.HealthAddr)

	gs.Wait()
	select {
	case err := <-gs.Err():
		return fmt.Errorf("health server: %w", err)
	default:
	}
	logger.Info("worker stopped")
	return nil
}
