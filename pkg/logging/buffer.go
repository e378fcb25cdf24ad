package logging

import (
	"strings"
	"sync"
)

// LogCaptureWriter is a thread-safe writer that keeps the last written line.
type LogCaptureWriter struct {
	mu       sync.RWMutex
	lastLine string
}

// GlobalLogCapture holds the latest INFO+ server log line for the status endpoint.
var GlobalLogCapture = &LogCaptureWriter{}

// Write implements io.Writer.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastLine = strings.TrimSpace(string(p))
	return len(p), nil
}

// LastLine returns the most recent log line.
func (w *LogCaptureWriter) LastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastLine
}
