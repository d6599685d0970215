package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apex/log"
)

var startTime = time.Now()

// logHandler prints log entries with the time elapsed since startup.
type logHandler struct {
	mu sync.Mutex
	io.Writer
}

var _ log.Handler = &logHandler{}

// NewHandler returns a [log.Handler] writing to w.
func NewHandler(w io.Writer) log.Handler {
	return &logHandler{Writer: w}
}

// HandleLog implements log.Handler.
func (h *logHandler) HandleLog(e *log.Entry) (err error) {
	var s string
	elapsed := time.Since(startTime).Seconds()
	switch e.Level {
	case log.DebugLevel:
		s = fmt.Sprintf("[%14.6f] <debug> %s", elapsed, e.Message)
	case log.ErrorLevel, log.FatalLevel:
		s = fmt.Sprintf("[%14.6f] <!err> %s", elapsed, e.Message)
	default:
		s = fmt.Sprintf("[%14.6f] <%s> %s", elapsed, e.Level, e.Message)
	}
	if len(e.Fields) > 0 {
		s += fmt.Sprintf(": %+v", e.Fields)
	}
	s += "\n"
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.Writer.Write([]byte(s))
	return
}

// levelFromVerbosity maps the 1..5 verbosity flag onto a log level.
func levelFromVerbosity(v uint16) log.Level {
	switch v {
	case 1:
		return log.FatalLevel
	case 2:
		return log.ErrorLevel
	case 3:
		return log.WarnLevel
	case 4:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}
