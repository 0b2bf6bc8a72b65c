package gsp

import (
	"io"
	"log"
	"os"
)

var (
	opsLogger   = newLogger("[gsp] ", os.Stderr)
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the gsp package.
// Pass nil for any writer to disable that stream. Call it during setup,
// before any Disaggregate call is in flight.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[gsp] ", ops)
	diagLogger = newLogger("[gsp] ", diag)
	traceLogger = newLogger("[gsp] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (solve failures, safety bounds reached).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-stage summaries).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-seed and per-window detail).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
