// Package config loads routeopt settings: built-in defaults, then an optional
// YAML file, then environment variables. Command line flags are applied by
// the caller on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"routeopt/internal/logging"
	"routeopt/internal/opt"
)

type Config struct {
	Optimizer Optimizer `yaml:"optimizer"`
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Progress  Progress  `yaml:"progress"`
	Webhooks  Webhooks  `yaml:"webhooks"`
	Log       Log       `yaml:"log"`
}

type Optimizer struct {
	Threads             int           `yaml:"threads"`
	UpdateStrategy      string        `yaml:"updateStrategy"`
	SelectionStrategy   string        `yaml:"selectionStrategy"`
	HybridRatio         string        `yaml:"hybridRatio"`
	MaxRounds           int           `yaml:"maxRounds"`
	PollInterval        time.Duration `yaml:"pollInterval"`
	SlotWait            time.Duration `yaml:"slotWait"`
	IncreasedRipupCosts bool          `yaml:"increasedRipupCosts"`
	Seed                int64         `yaml:"seed"`
}

type Server struct {
	// Listen is the HTTP listen address. Empty disables the server.
	Listen string `yaml:"listen"`
}

type Database struct {
	// URL is a Postgres connection string. Empty keeps round history in memory.
	URL string `yaml:"url"`
}

type Redis struct {
	// URL is a redis:// URL. Empty keeps progress events in process.
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type Progress struct {
	// RatePerSecond limits board update events. Zero disables the limit.
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
}

type Webhooks struct {
	// URLs receive a POST with every round summary.
	URLs        []string `yaml:"urls"`
	Secret      string   `yaml:"secret"`
	MaxAttempts int      `yaml:"maxAttempts"`
}

type Log struct {
	Verbosity   int  `yaml:"verbosity"`
	Development bool `yaml:"development"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Optimizer: Optimizer{
			Threads:             runtime.NumCPU(),
			UpdateStrategy:      string(opt.Greedy),
			SelectionStrategy:   string(opt.Sequential),
			HybridRatio:         opt.DefaultHybridRatio,
			MaxRounds:           100,
			PollInterval:        opt.DefaultPollInterval,
			SlotWait:            opt.DefaultSlotWait,
			IncreasedRipupCosts: true,
		},
		Redis:    Redis{Channel: "routeopt:progress"},
		Progress: Progress{RatePerSecond: 5, Burst: 1},
		Webhooks: Webhooks{MaxAttempts: 5},
		Log:      Log{Verbosity: logging.DEFAULT},
	}
}

// Load returns the defaults overlaid with the YAML file at path, if any, and
// the environment.
func Load(path string, logger logr.Logger) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(raw)); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(logger)
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from ROUTEOPT_* variables and the conventional
// DATABASE_URL, REDIS_URL and PORT.
func (c *Config) ApplyEnv(logger logr.Logger) {
	o := &c.Optimizer
	o.Threads = envInt("ROUTEOPT_THREADS", o.Threads, logger)
	o.UpdateStrategy = envString("ROUTEOPT_UPDATE_STRATEGY", o.UpdateStrategy, logger)
	o.SelectionStrategy = envString("ROUTEOPT_SELECTION_STRATEGY", o.SelectionStrategy, logger)
	o.HybridRatio = envString("ROUTEOPT_HYBRID_RATIO", o.HybridRatio, logger)
	o.MaxRounds = envInt("ROUTEOPT_MAX_ROUNDS", o.MaxRounds, logger)
	o.PollInterval = envDuration("ROUTEOPT_POLL_INTERVAL", o.PollInterval, logger)
	o.SlotWait = envDuration("ROUTEOPT_SLOT_WAIT", o.SlotWait, logger)
	o.IncreasedRipupCosts = envBool("ROUTEOPT_INCREASED_RIPUP_COSTS", o.IncreasedRipupCosts, logger)
	o.Seed = envInt64("ROUTEOPT_SEED", o.Seed, logger)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL, logger)
	c.Redis.URL = envString("REDIS_URL", c.Redis.URL, logger)
	c.Redis.Channel = envString("ROUTEOPT_REDIS_CHANNEL", c.Redis.Channel, logger)
	c.Progress.RatePerSecond = envFloat("ROUTEOPT_PROGRESS_RATE", c.Progress.RatePerSecond, logger)
	c.Webhooks.URLs = envList("ROUTEOPT_WEBHOOK_URLS", c.Webhooks.URLs, logger)
	c.Webhooks.Secret = envString("ROUTEOPT_WEBHOOK_SECRET", c.Webhooks.Secret, logger)
	c.Webhooks.MaxAttempts = envInt("WEBHOOK_MAX_ATTEMPTS", c.Webhooks.MaxAttempts, logger)
	c.Log.Verbosity = envInt("ROUTEOPT_VERBOSITY", c.Log.Verbosity, logger)
	if port := envString("PORT", "", logger); port != "" {
		c.Server.Listen = ":" + port
	}
	c.Server.Listen = envString("ROUTEOPT_LISTEN", c.Server.Listen, logger)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	o := c.Optimizer
	if o.Threads < 1 {
		err = multierr.Append(err, fmt.Errorf("optimizer.threads must be at least 1, got %d", o.Threads))
	}
	if _, e := opt.ParseUpdateStrategy(o.UpdateStrategy); e != nil {
		err = multierr.Append(err, fmt.Errorf("optimizer.updateStrategy: %w", e))
	}
	if _, e := opt.ParseSelectionStrategy(o.SelectionStrategy); e != nil {
		err = multierr.Append(err, fmt.Errorf("optimizer.selectionStrategy: %w", e))
	}
	if o.MaxRounds < 0 {
		err = multierr.Append(err, fmt.Errorf("optimizer.maxRounds must not be negative, got %d", o.MaxRounds))
	}
	if o.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("optimizer.pollInterval must be positive, got %s", o.PollInterval))
	}
	if o.SlotWait <= 0 {
		err = multierr.Append(err, fmt.Errorf("optimizer.slotWait must be positive, got %s", o.SlotWait))
	}
	if c.Progress.RatePerSecond < 0 {
		err = multierr.Append(err, fmt.Errorf("progress.ratePerSecond must not be negative, got %g", c.Progress.RatePerSecond))
	}
	if c.Progress.RatePerSecond > 0 && c.Progress.Burst < 1 {
		err = multierr.Append(err, fmt.Errorf("progress.burst must be at least 1, got %d", c.Progress.Burst))
	}
	if c.Webhooks.MaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("webhooks.maxAttempts must be at least 1, got %d", c.Webhooks.MaxAttempts))
	}
	for _, u := range c.Webhooks.URLs {
		if parsed, e := url.Parse(u); e != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			err = multierr.Append(err, fmt.Errorf("webhooks.urls: %q is not an http(s) URL", u))
		}
	}
	if c.Log.Verbosity < 0 {
		err = multierr.Append(err, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	return err
}

// SchedulerConfig converts the optimizer section. A malformed hybrid ratio is
// passed through; the scheduler falls back to the default ratio.
func (o Optimizer) SchedulerConfig() (opt.Config, error) {
	update, err := opt.ParseUpdateStrategy(o.UpdateStrategy)
	if err != nil {
		return opt.Config{}, err
	}
	selection, err := opt.ParseSelectionStrategy(o.SelectionStrategy)
	if err != nil {
		return opt.Config{}, err
	}
	return opt.Config{
		PoolSize:            o.Threads,
		UpdateStrategy:      update,
		SelectionStrategy:   selection,
		HybridRatio:         o.HybridRatio,
		PollInterval:        o.PollInterval,
		SlotWait:            o.SlotWait,
		IncreasedRipupCosts: o.IncreasedRipupCosts,
		Seed:                o.Seed,
	}, nil
}
