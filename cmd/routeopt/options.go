package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"routeopt/internal/config"
)

// options holds the command line. Anything left unset falls back to the
// config file and environment.
type options struct {
	BoardPath  string
	OutPath    string
	ConfigPath string
	Generate   int
	Version    bool

	Threads           int
	UpdateStrategy    string
	SelectionStrategy string
	HybridRatio       string
	MaxRounds         int
	Seed              int64
	Listen            string
	Verbosity         int
	Development       bool

	fs *pflag.FlagSet
}

func newOptions() *options {
	d := config.Default()
	return &options{
		Threads:           d.Optimizer.Threads,
		UpdateStrategy:    d.Optimizer.UpdateStrategy,
		SelectionStrategy: d.Optimizer.SelectionStrategy,
		HybridRatio:       d.Optimizer.HybridRatio,
		MaxRounds:         d.Optimizer.MaxRounds,
		Verbosity:         d.Log.Verbosity,
	}
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	o.fs = fs
	fs.StringVar(&o.BoardPath, "board", o.BoardPath, "Board file to optimize (.yaml or .json).")
	fs.StringVar(&o.OutPath, "out", o.OutPath, "Where to write the optimized board. Defaults to --board.")
	fs.StringVar(&o.ConfigPath, "config", o.ConfigPath, "Optional YAML config file.")
	fs.IntVar(&o.Generate, "generate", o.Generate, "Generate a synthetic board with this many traces instead of loading --board.")
	fs.BoolVar(&o.Version, "version", o.Version, "Print build information and exit.")

	fs.IntVarP(&o.Threads, "threads", "t", o.Threads, "Number of concurrent reroute workers.")
	fs.StringVar(&o.UpdateStrategy, "update-strategy", o.UpdateStrategy, "greedy, global_optimal or hybrid.")
	fs.StringVar(&o.SelectionStrategy, "selection-strategy", o.SelectionStrategy, "sequential, random or prioritized.")
	fs.StringVar(&o.HybridRatio, "hybrid-ratio", o.HybridRatio, "global_optimal:greedy round ratio for the hybrid strategy.")
	fs.IntVar(&o.MaxRounds, "max-rounds", o.MaxRounds, "Upper bound on optimization rounds. 0 means unlimited.")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "Seed for random selection and --generate. 0 picks one from the clock.")
	fs.StringVar(&o.Listen, "listen", o.Listen, "HTTP listen address for progress and metrics. Empty disables it.")
	fs.IntVarP(&o.Verbosity, "v", "v", o.Verbosity, "Number for the log level verbosity.")
	fs.BoolVar(&o.Development, "log-development", o.Development, "Human readable console logs.")
}

func (o *options) validate() error {
	if o.Version {
		return nil
	}
	if o.BoardPath == "" && o.Generate <= 0 {
		return errors.New("one of --board or --generate is required")
	}
	if o.Generate < 0 {
		return fmt.Errorf("--generate must not be negative, got %d", o.Generate)
	}
	if o.BoardPath == "" && o.OutPath == "" {
		o.OutPath = "generated.yaml"
	}
	if o.OutPath == "" {
		o.OutPath = o.BoardPath
	}
	return nil
}

// apply overlays the flags the user actually set on cfg.
func (o *options) apply(cfg *config.Config) {
	changed := func(name string) bool {
		f := o.fs.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("threads") {
		cfg.Optimizer.Threads = o.Threads
	}
	if changed("update-strategy") {
		cfg.Optimizer.UpdateStrategy = o.UpdateStrategy
	}
	if changed("selection-strategy") {
		cfg.Optimizer.SelectionStrategy = o.SelectionStrategy
	}
	if changed("hybrid-ratio") {
		cfg.Optimizer.HybridRatio = o.HybridRatio
	}
	if changed("max-rounds") {
		cfg.Optimizer.MaxRounds = o.MaxRounds
	}
	if changed("seed") {
		cfg.Optimizer.Seed = o.Seed
	}
	if changed("listen") {
		cfg.Server.Listen = o.Listen
	}
	if changed("v") {
		cfg.Log.Verbosity = o.Verbosity
	}
	if changed("log-development") {
		cfg.Log.Development = o.Development
	}
}
