// Package logging constructs the single zap logger threaded through every
// core component by constructor injection. No package-level logger exists
// here deliberately: callers that want one build it with New and pass it
// down, the way the rest of this module avoids hidden globals.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction.
type Options struct {
	// Development enables human-readable console output and DPanic-on-bug
	// semantics; production uses JSON output.
	Development bool
	// Level is the minimum enabled level (zapcore.DebugLevel..FatalLevel).
	Level zapcore.Level
}

// New builds a *zap.Logger per Options. A zero Options value yields a
// production JSON logger at InfoLevel.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(opts.Level)
	return cfg.Build()
}

// Noop returns a logger that discards everything, for components
// constructed without an explicit logger (tests, embedding contexts that
// don't want log output).
func Noop() *zap.Logger {
	return zap.NewNop()
}
