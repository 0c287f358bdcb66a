package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// timestampFormat prefixes every event and debug log line.
const timestampFormat = "2006-01-02 15:04:05.000"

// FileLogger is the append-only event log: scans completing, watch and
// serve starting and stopping. One timestamped line per event. A nil
// *FileLogger drops everything, so callers log unconditionally and the
// --log flag decides whether anything lands on disk.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("NewFileLogger: %w", err)
	}
	return &FileLogger{file: file}, nil
}

// Log appends one timestamped line. Safe from any goroutine; calls on
// a nil or closed logger are dropped.
func (l *FileLogger) Log(format string, args ...interface{}) {
	if l == nil {
		return
	}

	line := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	fmt.Fprintf(l.file, "%s %s\n", time.Now().Format(timestampFormat), line)
}

// Close releases the underlying file. Calling it again, or on a nil
// logger, is a no-op.
func (l *FileLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
