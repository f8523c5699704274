// Package metrics records skill ranking operations.
package metrics

import "context"

// Collector is the interface for metrics collection.
// MetricsCollector reports to Prometheus; NoopCollector discards everything.
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	SetSkillsCount(ctx context.Context, kind string, count int64)
}
