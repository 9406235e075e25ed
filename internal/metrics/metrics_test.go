package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
)

func sampleReport() *RunReport {
	r := New()
	r.Titles = ingest.Report{Dataset: "titles", RowsRead: 25000, Accepted: 24990, Ignored: 10}
	r.Credits = ingest.Report{Dataset: "credits", RowsRead: 25000, Accepted: 3120, Skipped: 2, Ignored: 21878, Capped: true}
	r.RetainedTitles = 24990
	r.ActingCredits = 3120
	r.Graph = graph.Stats{Nodes: 1500, Edges: 4200, TotalWeight: 4300, Components: 37, MaxDegreeNode: "nm0000001", MaxDegree: 42}
	r.AddStage("ingest", 120*time.Millisecond, nil)
	r.AddStage("project", 30*time.Millisecond, nil)
	r.AddStage("export", time.Millisecond, errors.New("disk full"))
	r.Finish([]string{"export: disk full"})
	return r
}

func TestRunReport_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	sampleReport().PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{
		"CASTGRAPH RUN REPORT",
		"Number of connected components: 37",
		"Node with max degree: nm0000001, Degree: 42",
		"25,000 rows",
		"(capped)",
		"FAILED",
		"disk full",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRunReport_EmptyGraph(t *testing.T) {
	r := New()
	if got := r.MaxDegreeLine(); !strings.Contains(got, "none") {
		t.Errorf("expected empty-graph wording, got %q", got)
	}
	if got := r.ComponentsLine(); got != "Number of connected components: 0" {
		t.Errorf("unexpected line %q", got)
	}
}

func TestRunReport_JSON(t *testing.T) {
	data, err := sampleReport().JSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	g, ok := decoded["graph"].(map[string]any)
	if !ok {
		t.Fatalf("expected graph object, got %T", decoded["graph"])
	}
	if g["connected_components"].(float64) != 37 {
		t.Errorf("unexpected components %v", g["connected_components"])
	}
	if stages := decoded["stages"].([]any); len(stages) != 3 {
		t.Errorf("expected 3 stages, got %d", len(stages))
	}
}

func TestRunReport_Finish(t *testing.T) {
	r := New()
	time.Sleep(time.Millisecond)
	r.Finish(nil)
	if r.Duration <= 0 {
		t.Error("expected positive duration")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		t.Error("finish before start")
	}
}
