// Package monitoring holds the process-wide logging streams.
//
// Three streams are kept apart so that operators can route them separately:
// ops (actionable warnings, errors, data loss), diag (per-file diagnostics)
// and trace (per-pulse telemetry). Diag and trace are disabled until a
// writer is configured; ops falls back to Logf.
package monitoring

import (
	"io"
	"log"
)

// Logf is the fallback sink for the ops stream. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the fallback logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

const prefix = "[gamic2iwrf] "

// SetLogWriters configures the three logging streams.
// Pass nil for any writer to disable that stream (ops then falls back to Logf).
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger(ops)
	diagLogger = newLogger(diag)
	traceLogger = newLogger(trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
		return
	}
	Logf(format, args...)
}

// Warnf logs a recoverable problem to the ops stream.
func Warnf(format string, args ...interface{}) {
	Opsf("WARNING - "+format, args...)
}

// Errorf logs a failure to the ops stream. It does not construct an error.
func Errorf(format string, args ...interface{}) {
	Opsf("ERROR - "+format, args...)
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

// TraceEnabled reports whether a trace writer is configured, so hot loops can
// skip building arguments.
func TraceEnabled() bool {
	return traceLogger != nil
}
