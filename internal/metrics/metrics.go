package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/efebarandurmaz/castgraph/internal/ingest"
)

// RunReport collects statistics for a full build run.
type RunReport struct {
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at,omitempty"`
	Duration       time.Duration  `json:"duration_ns,omitempty"`
	Titles         ingest.Report  `json:"titles"`
	Credits        ingest.Report  `json:"credits"`
	RetainedTitles int            `json:"retained_titles"`
	ActingCredits  int            `json:"acting_credits"`
	Graph          graph.Stats    `json:"graph"`
	Stages         []StageMetrics `json:"stages"`
	Export         *ExportMetrics `json:"export,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
}

type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

type ExportMetrics struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
}

// New starts tracking a run.
func New() *RunReport {
	return &RunReport{StartedAt: time.Now()}
}

// AddStage records a single stage's timing and status.
func (r *RunReport) AddStage(name string, d time.Duration, err error) {
	s := StageMetrics{Name: name, Duration: d}
	if err != nil {
		s.Error = err.Error()
	}
	r.Stages = append(r.Stages, s)
}

// Finish marks the run as complete.
func (r *RunReport) Finish(errs []string) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.Errors = append(r.Errors, errs...)
}

// ComponentsLine reports the connected component count.
func (r *RunReport) ComponentsLine() string {
	return fmt.Sprintf("Number of connected components: %d", r.Graph.Components)
}

// MaxDegreeLine reports the max-degree node.
func (r *RunReport) MaxDegreeLine() string {
	if r.Graph.Nodes == 0 {
		return "Node with max degree: none (empty graph)"
	}
	return fmt.Sprintf("Node with max degree: %s, Degree: %d", r.Graph.MaxDegreeNode, r.Graph.MaxDegree)
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// PrintSummary writes a human-readable summary.
func (r *RunReport) PrintSummary(w io.Writer) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CASTGRAPH RUN REPORT") + "\n")
	fmt.Fprintf(&b, "Duration:  %s\n\n", r.Duration.Round(time.Millisecond))

	b.WriteString(sectionStyle.Render("INPUT") + "\n")
	writeIngest(&b, r.Titles)
	writeIngest(&b, r.Credits)
	fmt.Fprintf(&b, "  retained titles: %s, acting credits: %s\n\n",
		humanize.Comma(int64(r.RetainedTitles)), humanize.Comma(int64(r.ActingCredits)))

	b.WriteString(sectionStyle.Render("GRAPH") + "\n")
	fmt.Fprintf(&b, "  Nodes:       %s\n", humanize.Comma(int64(r.Graph.Nodes)))
	fmt.Fprintf(&b, "  Edges:       %s\n", humanize.Comma(int64(r.Graph.Edges)))
	fmt.Fprintf(&b, "  Weight:      %s\n", humanize.Comma(int64(r.Graph.TotalWeight)))
	fmt.Fprintf(&b, "  %s\n", r.ComponentsLine())
	fmt.Fprintf(&b, "  %s\n\n", r.MaxDegreeLine())

	b.WriteString(sectionStyle.Render("STAGES") + "\n")
	for _, s := range r.Stages {
		status := "OK"
		if s.Error != "" {
			status = errorStyle.Render("FAILED")
		}
		fmt.Fprintf(&b, "  %-10s %10s  %s\n", s.Name, s.Duration.Round(time.Microsecond), status)
	}

	if r.Export != nil {
		b.WriteString("\n" + sectionStyle.Render("EXPORT") + "\n")
		fmt.Fprintf(&b, "  %s -> %s\n", r.Export.Format, r.Export.Path)
	}
	if len(r.Errors) > 0 {
		b.WriteString("\n" + sectionStyle.Render("ERRORS") + "\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  • %s\n", errorStyle.Render(e))
		}
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func writeIngest(b *strings.Builder, rep ingest.Report) {
	capped := ""
	if rep.Capped {
		capped = " (capped)"
	}
	fmt.Fprintf(b, "  %-8s %s rows, %s accepted, %s skipped, %s ignored%s\n",
		rep.Dataset,
		humanize.Comma(int64(rep.RowsRead)),
		humanize.Comma(int64(rep.Accepted)),
		humanize.Comma(int64(rep.Skipped)),
		humanize.Comma(int64(rep.Ignored)),
		capped)
}

// JSON returns the report as formatted JSON.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
