package skillgap

import (
	"time"

	"github.com/dan-solli/skillgap/pkg/trace"
)

// OperationTrace captures timing data for a TopSkills, RankCategories or AnalyzeJob call.
type OperationTrace struct {
	// OperationID correlates this trace with exported trace records
	OperationID string `json:"operationId"`

	// Operation is the operation name: "top_skills", "top_skills_by_category",
	// "rank_categories" or "analyze_job"
	Operation string `json:"operation"`

	// Spans contains timing data for each stage of the operation
	Spans []Span `json:"spans"`

	// TotalDurationMs is the total elapsed time for the operation in milliseconds
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Span represents a single timed stage within an operation.
// Stage names are stable and documented:
//   - "filter": Category filtering of postings
//   - "normalize": Embedding, clustering and ranking of labels
//   - "extract": Skill extraction from a job description
//   - "gaps": Comparison of ranked skills with the user's skills
type Span struct {
	// Name identifies the operation stage (see Span documentation for stable names)
	Name string `json:"name"`

	// DurationMs is the elapsed time for this span in milliseconds
	DurationMs int64 `json:"durationMs"`

	// OK indicates whether the span completed successfully
	OK bool `json:"ok"`

	// Error contains error message if OK is false (optional)
	Error string `json:"error,omitempty"`

	// Counters provides additional metrics for the span (optional)
	// Example keys: "labels", "unique", "clusters", "ranked", "postings"
	Counters map[string]int64 `json:"counters,omitempty"`

	errorType string
}

// newTrace creates a new OperationTrace with empty spans
func newTrace(id, operation string) *OperationTrace {
	return &OperationTrace{
		OperationID: id,
		Operation:   operation,
		Spans:       make([]Span, 0),
	}
}

// addSpan appends a completed span to the trace
func (t *OperationTrace) addSpan(span Span) {
	t.Spans = append(t.Spans, span)
	t.TotalDurationMs += span.DurationMs
}

// record converts the trace into a sanitized export record.
// Span error messages are replaced by their classification.
func (t *OperationTrace) record(start time.Time, durationMs int64, err error) *trace.TraceRecord {
	rec := &trace.TraceRecord{
		Timestamp:   start,
		OperationID: t.OperationID,
		Operation:   t.Operation,
		DurationMs:  durationMs,
		Status:      statusOf(err),
		ErrorType:   ClassifyError(err),
		Spans:       make([]trace.SpanRecord, 0, len(t.Spans)),
	}
	for _, s := range t.Spans {
		sr := trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			Counters:   s.Counters,
		}
		if !s.OK {
			sr.ErrorType = s.errorType
		}
		rec.Spans = append(rec.Spans, sr)
	}
	return rec
}

// spanTimer is a helper for measuring span duration
type spanTimer struct {
	name    string
	start   int64 // Unix time in milliseconds
	trace   *OperationTrace
	enabled bool
}

// newSpanTimer creates a timer for a named span
func newSpanTimer(name string, trace *OperationTrace, enabled bool) *spanTimer {
	if !enabled || trace == nil {
		return &spanTimer{enabled: false}
	}
	return &spanTimer{
		name:    name,
		start:   timeNowMs(),
		trace:   trace,
		enabled: true,
	}
}

// finish completes the span and records it to the trace
func (st *spanTimer) finish(ok bool, err error, counters map[string]int64) {
	if !st.enabled {
		return
	}

	duration := timeNowMs() - st.start
	span := Span{
		Name:       st.name,
		DurationMs: duration,
		OK:         ok,
		Counters:   counters,
	}
	if err != nil {
		span.Error = err.Error()
		span.errorType = ClassifyError(err)
	}
	st.trace.addSpan(span)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// timeNowMs returns current Unix time in milliseconds
func timeNowMs() int64 {
	return time.Now().UnixMilli()
}
