package sampler

import (
	"io"
	"log"
	"sync"
)

var (
	mu          sync.RWMutex
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the logging streams for the sampler package.
// The sampler has no ops stream: its only failure is returned to the caller.
// Pass nil for any writer to disable that stream.
func SetLogWriters(diag, trace io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	diagLogger = newLogger("[sampler] ", diag)
	traceLogger = newLogger("[sampler] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// diagf logs to the diag stream (skipped windows).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-window decode telemetry).
func tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
