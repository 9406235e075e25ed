package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "castgraph"

// PipelineMetrics holds the Prometheus collectors for a build run. Each
// instance owns its registry so runs and tests do not collide.
type PipelineMetrics struct {
	Registry *prometheus.Registry

	RowsRead      *prometheus.CounterVec
	RowsSkipped   *prometheus.CounterVec
	RowsAccepted  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Runs          *prometheus.CounterVec

	GraphNodes      prometheus.Gauge
	GraphEdges      prometheus.Gauge
	GraphComponents prometheus.Gauge
	GraphMaxDegree  prometheus.Gauge
}

// NewPipelineMetrics creates and registers all collectors.
func NewPipelineMetrics() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	m := &PipelineMetrics{
		Registry: reg,
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Data rows consumed from an input file.",
		}, []string{"dataset"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Malformed rows skipped during ingest.",
		}, []string{"dataset"}),
		RowsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_accepted_total",
			Help:      "Rows that produced a retained title or an acting credit.",
		}, []string{"dataset"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Person nodes in the last projected graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Co-credit edges in the last projected graph.",
		}),
		GraphComponents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_connected_components",
			Help:      "Connected components in the last projected graph.",
		}),
		GraphMaxDegree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_max_degree",
			Help:      "Highest node degree in the last projected graph.",
		}),
	}
	reg.MustRegister(
		m.RowsRead, m.RowsSkipped, m.RowsAccepted, m.StageDuration, m.Runs,
		m.GraphNodes, m.GraphEdges, m.GraphComponents, m.GraphMaxDegree,
	)
	return m
}

// ObserveStage records the duration of one stage.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordIngest adds the row counts for one dataset.
func (m *PipelineMetrics) RecordIngest(dataset string, read, accepted, skipped int) {
	m.RowsRead.WithLabelValues(dataset).Add(float64(read))
	m.RowsAccepted.WithLabelValues(dataset).Add(float64(accepted))
	m.RowsSkipped.WithLabelValues(dataset).Add(float64(skipped))
}

// RecordGraph sets the graph gauges.
func (m *PipelineMetrics) RecordGraph(nodes, edges, components, maxDegree int) {
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
	m.GraphComponents.Set(float64(components))
	m.GraphMaxDegree.Set(float64(maxDegree))
}

// RecordRun counts a finished run.
func (m *PipelineMetrics) RecordRun(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *PipelineMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
