package manifest

import (
	"fmt"
	"io"
	"sync"
)

// Log collects the lines manifest code writes with log and read
// statements. A nil *Log discards everything.
type Log struct {
	mu    sync.Mutex
	lines []string
	echo  io.Writer
}

// NewLog creates a log that also writes each line to echo, if non-nil.
func NewLog(echo io.Writer) *Log {
	return &Log{echo: echo}
}

// Printf appends one formatted line.
func (l *Log) Printf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if l.echo != nil {
		fmt.Fprintln(l.echo, line)
	}
}

// Lines returns a copy of the lines written so far.
func (l *Log) Lines() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Reset drops all lines.
func (l *Log) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}
