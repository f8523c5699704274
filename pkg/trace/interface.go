// Package trace exports per-operation timing records as JSON Lines.
package trace

import (
	"context"
	"time"
)

// Exporter defines the interface for exporting operation traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	// Returns error if export fails.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	// Should be called during graceful shutdown.
	Close() error
}

// TraceRecord represents a sanitized operation trace ready for export.
// This structure contains NO sensitive data (no skill labels, job text or API keys).
type TraceRecord struct {
	// Timestamp is the operation start time
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this operation (for correlation)
	OperationID string `json:"operationId"`

	// Operation is the operation type: "top_skills", "rank_categories", "analyze_job"
	Operation string `json:"operation"`

	// DurationMs is the total operation duration in milliseconds
	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// Spans contains per-stage timing and status
	Spans []SpanRecord `json:"spans"`

	// ErrorType classifies the error (if Status == "error")
	// Values: network, timeout, llm, embedding, database, validation, unknown
	ErrorType string `json:"errorType,omitempty"`

	// IDs contains operation-specific identifiers (no content)
	IDs map[string]interface{} `json:"ids,omitempty"`
}

// SpanRecord represents a single stage within an operation.
type SpanRecord struct {
	// Name is the stage name (filter, embed, cluster, rank, extract, gaps)
	Name string `json:"name"`

	// DurationMs is the stage duration in milliseconds
	DurationMs int64 `json:"durationMs"`

	// OK indicates success (true) or failure (false)
	OK bool `json:"ok"`

	// ErrorType classifies the error (if OK == false)
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides stage-specific metrics (e.g., uniqueLabels, clusters)
	Counters map[string]int64 `json:"counters,omitempty"`
}

const (
	defaultMaxSizeBytes    = 10 << 20
	defaultMaxRotatedFiles = 5
)

// fileExporterConfig holds the rotation settings of a FileExporter.
type fileExporterConfig struct {
	maxSizeBytes    int64
	maxRotatedFiles int
}

// FileExporterOption configures a FileExporter. Options are accepted in every
// build so callers need no build tags.
type FileExporterOption func(*fileExporterConfig)

// WithMaxSize sets the size at which the trace file is rotated (default: 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(c *fileExporterConfig) { c.maxSizeBytes = bytes }
}

// WithMaxRotatedFiles sets how many rotated files are kept (default: 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(c *fileExporterConfig) { c.maxRotatedFiles = count }
}

// NoopExporter is a zero-overhead exporter that does nothing.
type NoopExporter struct{}

// Export does nothing.
func (n *NoopExporter) Export(ctx context.Context, record *TraceRecord) error {
	return nil
}

// Close does nothing.
func (n *NoopExporter) Close() error {
	return nil
}
