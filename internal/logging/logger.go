// Package logging builds the logr.Logger used across routeopt.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V().
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// Options configures New.
type Options struct {
	// Verbosity is the highest V() level that is emitted.
	Verbosity int
	// Development switches to a human readable console encoder.
	Development bool
}

// atomicLevel is shared by every logger built here so SetVerbosity applies to
// loggers already handed out.
var atomicLevel = zap.NewAtomicLevelAt(zapcore.Level(-DEFAULT))

// New returns a zap-backed logr.Logger.
func New(opts Options) (logr.Logger, error) {
	SetVerbosity(opts.Verbosity)
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = atomicLevel
	zl, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard(), fmt.Errorf("logging: build zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// SetVerbosity adjusts the level of all loggers created by New.
func SetVerbosity(v int) {
	if v < 0 {
		v = 0
	}
	atomicLevel.SetLevel(zapcore.Level(-v))
}
