// Command routeopt removes vias and shortens traces of a routed board by
// rerouting its items concurrently, round after round, until nothing improves.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"routeopt/internal/board"
	"routeopt/internal/buildinfo"
	"routeopt/internal/config"
	"routeopt/internal/logging"
	"routeopt/internal/metrics"
	"routeopt/internal/opt"
	"routeopt/internal/router"
)

func main() {
	o := newOptions()
	fs := pflag.NewFlagSet("routeopt", pflag.ContinueOnError)
	o.addFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if o.Version {
		info := buildinfo.Info()
		fmt.Printf("routeopt %s (commit %s, built %s, %s)\n", info["version"], info["commit"], info["builtAt"], info["goVersion"])
		return
	}
	if err := o.validate(); err != nil {
		fmt.Fprintln(os.Stderr, "routeopt:", err)
		fs.Usage()
		os.Exit(2)
	}

	// flag settings log the config and environment overlay
	bootstrap, err := logging.New(logging.Options{Verbosity: o.Verbosity, Development: o.Development})
	if err != nil {
		fmt.Fprintln(os.Stderr, "routeopt:", err)
		os.Exit(1)
	}
	cfg, err := loadConfig(o, bootstrap.WithName("config"))
	if err != nil {
		bootstrap.Error(err, "Invalid configuration")
		os.Exit(2)
	}
	log, err := logging.New(loggingOptions(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, "routeopt:", err)
		os.Exit(1)
	}
	log = log.WithName("routeopt")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, cfg, log); err != nil {
		log.Error(err, "Optimization failed")
		stop()
		os.Exit(1)
	}
}

// loadConfig overlays the config file, the environment and explicit flags.
func loadConfig(o *options, log logr.Logger) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, log)
	if err != nil {
		return cfg, err
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loggingOptions(cfg config.Config) logging.Options {
	return logging.Options{Verbosity: cfg.Log.Verbosity, Development: cfg.Log.Development}
}

func run(ctx context.Context, o *options, cfg config.Config, log logr.Logger) error {
	metrics.RegisterDefault()

	b, err := loadBoard(o, cfg.Optimizer.Seed)
	if err != nil {
		return err
	}
	log.V(logging.DEFAULT).Info("Board loaded", "name", b.Name, "traces", len(b.Traces),
		"vias", b.ViaCount(), "traceLength", b.TraceLength(), "fingerprint", fmt.Sprintf("%016x", b.Fingerprint()))

	deps, err := newDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error(err, "Failed to close dependencies")
		}
	}()

	schedCfg, err := cfg.Optimizer.SchedulerConfig()
	if err != nil {
		return err
	}
	simplifier := router.NewSimplifier(log.WithName("router"))
	sched, err := opt.New(schedCfg, b, simplifier,
		opt.WithLogger(log.WithName("scheduler")),
		opt.WithSink(deps.sink()))
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Server.Listen != "" {
		srv = serve(cfg.Server.Listen, deps.server(sched, log.WithName("api")).Handler(), log)
	}

	start := time.Now()
	rounds := sched.Optimize(ctx, cfg.Optimizer.MaxRounds)

	result, ok := sched.Master().(*board.Board)
	if !ok {
		return fmt.Errorf("unexpected board type %T", sched.Master())
	}
	if err := board.Save(o.OutPath, result); err != nil {
		return err
	}
	log.V(logging.DEFAULT).Info("Board written", "path", o.OutPath, "rounds", rounds,
		"viasRemoved", b.ViaCount()-result.ViaCount(), "duration", time.Since(start).String())

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "Failed to shut down HTTP server")
		}
	}
	return nil
}

func loadBoard(o *options, seed int64) (*board.Board, error) {
	if o.Generate > 0 {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return board.Generate(newRand(seed), board.DefaultGenerateOptions(o.Generate)), nil
	}
	return board.Load(o.BoardPath)
}

func serve(addr string, h http.Handler, log logr.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.V(logging.DEFAULT).Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "HTTP server stopped")
		}
	}()
	return srv
}
