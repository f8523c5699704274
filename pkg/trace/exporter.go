//go:build tracing

package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileExporter appends one JSON line per operation to a file and rotates it
// to path.1 .. path.N once it reaches the configured size.
type FileExporter struct {
	path string
	cfg  fileExporterConfig

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// NewFileExporter opens (or creates) the trace file at filePath, creating its
// directory when needed. An empty filePath yields a NoopExporter.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return &NoopExporter{}, nil
	}

	cfg := fileExporterConfig{
		maxSizeBytes:    defaultMaxSizeBytes,
		maxRotatedFiles: defaultMaxRotatedFiles,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	fe := &FileExporter{path: filePath, cfg: cfg}
	if err := fe.open(); err != nil {
		return nil, err
	}
	return fe, nil
}

func (fe *FileExporter) open() error {
	file, err := os.OpenFile(fe.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat trace file: %w", err)
	}
	fe.file = file
	fe.size = info.Size()
	return nil
}

// Export writes record as one line. The file is rotated after the write that
// takes it past the size limit, so a record is never split across files.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	var line bytes.Buffer
	if err := json.NewEncoder(&line).Encode(record); err != nil {
		return fmt.Errorf("encode trace record: %w", err)
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return fmt.Errorf("exporter closed")
	}
	// A failed rotation leaves no open file.
	if fe.file == nil {
		if err := fe.open(); err != nil {
			return err
		}
	}

	n, err := fe.file.Write(line.Bytes())
	fe.size += int64(n)
	if err != nil {
		return fmt.Errorf("write trace record: %w", err)
	}

	if fe.size >= fe.cfg.maxSizeBytes {
		if err := fe.rotate(); err != nil {
			return fmt.Errorf("rotate trace file: %w", err)
		}
	}
	return nil
}

// Close syncs and closes the trace file. Closing twice is a no-op.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true
	if fe.file == nil {
		return nil
	}
	return errors.Join(fe.file.Sync(), fe.file.Close())
}

// rotate shifts path.N-1 to path.N down to path to path.1, dropping whatever
// falls past maxRotatedFiles, and reopens an empty path.
// Must be called with lock held.
func (fe *FileExporter) rotate() error {
	if err := fe.file.Close(); err != nil {
		return fmt.Errorf("close trace file: %w", err)
	}
	fe.file = nil

	rotated := func(n int) string { return fmt.Sprintf("%s.%d", fe.path, n) }

	if err := os.Remove(rotated(fe.cfg.maxRotatedFiles)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest trace file: %w", err)
	}
	for n := fe.cfg.maxRotatedFiles - 1; n >= 0; n-- {
		from := fe.path
		if n > 0 {
			from = rotated(n)
		}
		if err := os.Rename(from, rotated(n+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotate %s: %w", from, err)
		}
	}

	return fe.open()
}
