// Package logging builds the phuslu/log.Logger instances used
// throughout this module, following the teacher's convention of a
// single small factory per environment instead of ad hoc Logger
// literals at each call site.
package logging

import (
	"github.com/phuslu/log"
)

// NewDevLogger returns a debug-level logger writing colorized,
// human-readable lines to the console, for local development.
func NewDevLogger() *log.Logger {
	return &log.Logger{
		Level:  log.DebugLevel,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		},
	}
}

// NewProductionLogger returns an info-level logger writing plain,
// uncolored lines suitable for log aggregation pipelines.
func NewProductionLogger() *log.Logger {
	return &log.Logger{
		Level:  log.InfoLevel,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}
