// Package monitoring owns process-wide logging: the swappable Logf used by
// command code and the zap logger that backs each package's ops, diag and
// trace streams.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// ParseLevel maps a config level name onto a zap level. Unknown names fall
// back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewLogger builds the process logger. Development mode uses zap's console
// encoder; otherwise JSON production output.
func NewLogger(level string, development bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Install routes Logf through l at info level.
func Install(l *zap.SugaredLogger) {
	if l == nil {
		SetLogger(nil)
		return
	}
	SetLogger(l.Infof)
}

// StreamWriter adapts l into an io.Writer for a package log stream. Each
// write becomes one entry at lvl, tagged with the stream name.
func StreamWriter(l *zap.SugaredLogger, stream string, lvl zapcore.Level) io.Writer {
	return &streamWriter{log: l.Desugar().With(zap.String("stream", stream)), lvl: lvl}
}

type streamWriter struct {
	log *zap.Logger
	lvl zapcore.Level
}

func (w *streamWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if ce := w.log.Check(w.lvl, msg); ce != nil {
		ce.Write()
	}
	return len(p), nil
}
