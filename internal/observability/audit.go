package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventBuildStart AuditEventType = "build.start"
	AuditEventBuildEnd   AuditEventType = "build.end"
	AuditEventStage      AuditEventType = "stage"
	AuditEventExport     AuditEventType = "export"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	RunID      string         `json:"run_id"`
	Stage      string         `json:"stage,omitempty"`
	Success    bool           `json:"success"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// AuditLogger appends build events as JSON lines. A nil *AuditLogger and a
// disabled one both discard events.
type AuditLogger struct {
	mu     *sync.Mutex
	writer io.Writer
	closer io.Closer
	runID  string
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	// Path is a file path, "stdout" or "stderr". Empty disables auditing.
	Path  string
	RunID string
}

// NewAuditLogger opens the audit destination. Files are appended to.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	l := &AuditLogger{mu: &sync.Mutex{}, runID: cfg.RunID}
	if l.runID == "" {
		l.runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	switch cfg.Path {
	case "":
	case "stdout":
		l.writer = os.Stdout
	case "stderr":
		l.writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		l.writer = f
		l.closer = f
	}
	return l, nil
}

// NewAuditLoggerTo writes events to w, e.g. a buffer in tests.
func NewAuditLoggerTo(w io.Writer, runID string) *AuditLogger {
	return &AuditLogger{mu: &sync.Mutex{}, writer: w, runID: runID}
}

// WithRunID returns a logger that shares l's destination but tags events
// with runID. Closing it is a no-op.
func (l *AuditLogger) WithRunID(runID string) *AuditLogger {
	if l == nil {
		return nil
	}
	return &AuditLogger{mu: l.mu, writer: l.writer, runID: runID}
}

// RunID identifies every event this logger writes.
func (l *AuditLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Log writes an audit event.
func (l *AuditLogger) Log(event AuditEvent) error {
	if l == nil || l.writer == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogBuildStart records the inputs of a build.
func (l *AuditLogger) LogBuildStart(titlesPath, creditsPath string) {
	_ = l.Log(AuditEvent{
		EventType: AuditEventBuildStart,
		Success:   true,
		Details:   map[string]any{"titles": titlesPath, "credits": creditsPath},
	})
}

// LogStage records one finished stage.
func (l *AuditLogger) LogStage(stage string, d time.Duration, err error) {
	_ = l.Log(AuditEvent{
		EventType:  AuditEventStage,
		Stage:      stage,
		Success:    err == nil,
		DurationMS: d.Milliseconds(),
		Error:      errString(err),
	})
}

// LogExport records where the graph was written.
func (l *AuditLogger) LogExport(format, path string) {
	_ = l.Log(AuditEvent{
		EventType: AuditEventExport,
		Success:   true,
		Details:   map[string]any{"format": format, "path": path},
	})
}

// LogBuildEnd records the outcome of a build.
func (l *AuditLogger) LogBuildEnd(d time.Duration, nodes, edges, components int, err error) {
	ev := AuditEvent{
		EventType:  AuditEventBuildEnd,
		Success:    err == nil,
		DurationMS: d.Milliseconds(),
		Error:      errString(err),
	}
	if err == nil {
		ev.Details = map[string]any{"nodes": nodes, "edges": edges, "components": components}
	}
	_ = l.Log(ev)
}

// Close closes the audit file, if one was opened.
func (l *AuditLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
