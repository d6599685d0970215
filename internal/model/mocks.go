package model

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogger is a [Logger] that records every emitted line. It is safe
// to use from multiple goroutines.
type TestLogger struct {
	mu    sync.Mutex
	Lines []string
}

var _ Logger = &TestLogger{}

func (tl *TestLogger) append(msg string) {
	tl.mu.Lock()
	tl.Lines = append(tl.Lines, msg)
	tl.mu.Unlock()
}

func (tl *TestLogger) Debug(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Debugf(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Info(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Infof(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Warn(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Warnf(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}

// Snapshot returns a copy of the lines logged so far.
func (tl *TestLogger) Snapshot() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]string, len(tl.Lines))
	copy(out, tl.Lines)
	return out
}

// Contains returns whether any logged line contains substr.
func (tl *TestLogger) Contains(substr string) bool {
	for _, line := range tl.Snapshot() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		Lines: make([]string, 0),
	}
}
