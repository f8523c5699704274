package skillgap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dan-solli/skillgap/pkg/embeddings"
	"github.com/dan-solli/skillgap/pkg/trace"
)

// testVectors places near-duplicate spellings next to each other.
var testVectors = map[string][]float32{
	"python":        {1, 0, 0, 0, 0, 0},
	"python 3":      {0.99, 0.1, 0, 0, 0, 0},
	"sql":           {0, 1, 0, 0, 0, 0},
	"teamwork":      {0, 0, 1, 0, 0, 0},
	"javascript":    {0, 0, 0, 1, 0, 0},
	"js":            {0, 0, 0, 0.99, 0.1, 0},
	"communication": {0, 0, 0, 0, 1, 0},
	"react":         {0, 0, 0, 0, 0, 1},
}

// fakeEmbedder serves testVectors and counts calls. Unknown labels are an error.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	err     error
}

func (f *fakeEmbedder) client() embeddings.Func {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		f.mu.Lock()
		f.calls++
		f.batches = append(f.batches, append([]string(nil), texts...))
		f.mu.Unlock()

		if f.err != nil {
			return nil, f.err
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			v, ok := testVectors[text]
			if !ok {
				return nil, fmt.Errorf("no test vector for %q", text)
			}
			out[i] = v
		}
		return out, nil
	}
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLLM answers every schema request with a fixed JSON document.
type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeLLM) CompleteWithSchema(ctx context.Context, prompt string, schema any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), schema)
}

// fakeCollector records metric calls.
type fakeCollector struct {
	mu         sync.Mutex
	operations []string // operation/status
	stages     []string // operation/stage
	errors     []string // operation/errorType
	counts     map[string]int64
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{counts: make(map[string]int64)}
}

func (c *fakeCollector) RecordOperation(ctx context.Context, operation string, status string, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = append(c.operations, operation+"/"+status)
}

func (c *fakeCollector) RecordStage(ctx context.Context, operation string, stage string, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, operation+"/"+stage)
}

func (c *fakeCollector) RecordError(ctx context.Context, operation string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, operation+"/"+errorType)
}

func (c *fakeCollector) SetSkillsCount(ctx context.Context, kind string, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind] = count
}

// fakeExporter keeps exported trace records in memory.
type fakeExporter struct {
	mu      sync.Mutex
	records []*trace.TraceRecord
	closed  bool
}

func (e *fakeExporter) Export(ctx context.Context, record *trace.TraceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
	return nil
}

func (e *fakeExporter) Close() error {
	e.closed = true
	return nil
}

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	records []slog.Record
	mu      sync.Mutex
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		records: make([]slog.Record, 0),
	}
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *captureHandler) getRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]slog.Record, len(h.records))
	copy(result, h.records)
	return result
}

// attrs flattens a record's attributes into strings.
func attrs(r slog.Record) map[string]string {
	out := make(map[string]string)
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}
