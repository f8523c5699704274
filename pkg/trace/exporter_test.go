//go:build tracing

package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankRecord(id string) *TraceRecord {
	return &TraceRecord{
		Timestamp:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		OperationID: id,
		Operation:   "rank_categories",
		DurationMs:  840,
		Status:      "success",
		Spans: []SpanRecord{
			{Name: "normalize", DurationMs: 410, OK: true, Counters: map[string]int64{"labels": 120, "unique": 64}},
			{Name: "normalize", DurationMs: 380, OK: true, Counters: map[string]int64{"labels": 95, "unique": 51}},
		},
		IDs: map[string]interface{}{"categories": 2},
	}
}

func readRecords(t *testing.T, path string) []TraceRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []TraceRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r TraceRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r), "line %q", scanner.Text())
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestFileExporter_WritesOneLinePerRecord(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		require.NoError(t, exporter.Export(context.Background(), rankRecord(id)))
	}
	require.NoError(t, exporter.Close())

	records := readRecords(t, tracePath)
	require.Len(t, records, 3)
	assert.Equal(t, "op-1", records[0].OperationID)
	assert.Equal(t, "op-3", records[2].OperationID)
	assert.Equal(t, "rank_categories", records[1].Operation)
	assert.Len(t, records[1].Spans, 2)
	assert.Equal(t, int64(64), records[1].Spans[0].Counters["unique"])
}

func TestFileExporter_ErrorRecord(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	record := &TraceRecord{
		Timestamp:   time.Now(),
		OperationID: "op-err",
		Operation:   "analyze_job",
		DurationMs:  12,
		Status:      "error",
		ErrorType:   "embedding",
		Spans: []SpanRecord{
			{Name: "extract", DurationMs: 8, OK: true},
			{Name: "normalize", DurationMs: 4, OK: false, ErrorType: "embedding"},
		},
	}
	require.NoError(t, exporter.Export(context.Background(), record))
	require.NoError(t, exporter.Close())

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)
	assert.Equal(t, "error", records[0].Status)
	assert.Equal(t, "embedding", records[0].ErrorType)
	assert.False(t, records[0].Spans[1].OK)
	assert.Equal(t, "embedding", records[0].Spans[1].ErrorType)
}

func TestFileExporter_OmitsEmptyOptionalFields(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	record := &TraceRecord{Timestamp: time.Now(), OperationID: "op", Operation: "top_skills", Status: "success"}
	require.NoError(t, exporter.Export(context.Background(), record))
	require.NoError(t, exporter.Close())

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "errorType")
	assert.NotContains(t, string(data), `"ids"`)
}

func TestFileExporter_Rotation(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "traces.jsonl")

	exporter, err := NewFileExporter(tracePath, WithMaxSize(512), WithMaxRotatedFiles(2))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, exporter.Export(context.Background(), rankRecord(strings.Repeat("x", 40))))
	}
	require.NoError(t, exporter.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"traces.jsonl", "traces.jsonl.1", "traces.jsonl.2"}, names)

	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(2*512), name)
	}
}

func TestFileExporter_ExportAfterClose(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, exporter.Close())
	require.NoError(t, exporter.Close(), "second Close")

	assert.Error(t, exporter.Export(context.Background(), rankRecord("late")))
}

func TestFileExporter_CreatesParentDirectories(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "var", "log", "skillgap", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)
	require.NoError(t, exporter.Export(context.Background(), rankRecord("op")))
	require.NoError(t, exporter.Close())

	assert.FileExists(t, tracePath)
}

func TestNewFileExporter_EmptyPathIsNoop(t *testing.T) {
	exporter, err := NewFileExporter("")
	require.NoError(t, err)
	assert.IsType(t, &NoopExporter{}, exporter)
	assert.NoError(t, exporter.Export(context.Background(), rankRecord("noop")))
	assert.NoError(t, exporter.Close())
}

func TestFileExporter_AppendsAcrossRuns(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	for _, id := range []string{"run-1", "run-2"} {
		exporter, err := NewFileExporter(tracePath)
		require.NoError(t, err)
		require.NoError(t, exporter.Export(context.Background(), rankRecord(id)))
		require.NoError(t, exporter.Close())
	}

	records := readRecords(t, tracePath)
	require.Len(t, records, 2)
	assert.Equal(t, "run-2", records[1].OperationID)
}
