package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ajsharma/verify_split/internal/events"
)

// DefaultBufferSize is the default buffer size for the report writer (8 KB).
const DefaultBufferSize = 8 * 1024

// ReportWriter appends report events to a JSONL file.
// Each run adds its records; earlier runs are kept.
type ReportWriter struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// OpenReport opens (creating if needed) the report file at path.
func OpenReport(path string) (*ReportWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}

	return &ReportWriter{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, DefaultBufferSize),
	}, nil
}

// Path returns the report file path.
func (rw *ReportWriter) Path() string {
	return rw.path
}

// WriteEvent writes a report event.
// run.result events are flushed and synced immediately.
func (rw *ReportWriter) WriteEvent(event *events.LogEvent) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return os.ErrClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := rw.writer.Write(append(data, '\n')); err != nil {
		return err
	}

	if event.EventType == events.EventRunResult {
		if err := rw.writer.Flush(); err != nil {
			return err
		}
		return rw.file.Sync()
	}
	return nil
}

// Close flushes and closes the report file. Closing twice is a no-op.
func (rw *ReportWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}

	var lastErr error
	if err := rw.writer.Flush(); err != nil {
		lastErr = err
	}
	if err := rw.file.Sync(); err != nil {
		lastErr = err
	}
	if err := rw.file.Close(); err != nil {
		lastErr = err
	}
	rw.file = nil
	return lastErr
}
