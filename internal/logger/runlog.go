package logger

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RunLog is the append-only log sink for a single run. All writers funnel
// through one mutex so lines from the orchestrator, the snapshot logger and
// child process output never interleave mid-line. Lines are written straight
// to the underlying file; nothing is buffered between writes.
type RunLog struct {
	mu   sync.Mutex
	w    io.WriteCloser
	path string
}

const runLogTimeLayout = "2006-01-02 15:04:05.000"

// OpenRunLog opens (creating if needed) the run log at path with the given
// rotation settings.
func OpenRunLog(path string, fc FileConfig) *RunLog {
	return &RunLog{w: fc.newRotatingWriter(path), path: path}
}

// Path returns the run log file path.
func (l *RunLog) Path() string { return l.path }

// Printf appends one timestamped line.
func (l *RunLog) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, "%s %s\n", time.Now().Format(runLogTimeLayout), line)
}

// Write implements io.Writer for raw child process output. The payload is
// appended verbatim, under the same lock as Printf.
func (l *RunLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Close closes the underlying file.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}
