package opt

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultPollInterval bounds how long the drain loop waits between
	// cancellation checks.
	DefaultPollInterval = time.Minute
	// DefaultSlotWait bounds a single wait of a saturated submitter before it
	// re-checks the pool.
	DefaultSlotWait = 3 * time.Minute
)

// Config holds the scheduler settings. It is validated by New.
type Config struct {
	// PoolSize is the number of reroute tasks that may run at once. Each
	// running task holds a full board snapshot, so this also bounds memory.
	PoolSize int
	// UpdateStrategy decides when winners are committed to the master board.
	// Defaults to Greedy.
	UpdateStrategy UpdateStrategy
	// SelectionStrategy decides item order per round. Defaults to Sequential
	// and is overridden to Sequential in GlobalOptimal rounds.
	SelectionStrategy SelectionStrategy
	// HybridRatio is "a:b", the number of GlobalOptimal rounds followed by the
	// number of Greedy rounds in one Hybrid cycle. Only read for Hybrid.
	HybridRatio string
	// PollInterval is the drain loop's wake-up interval.
	PollInterval time.Duration
	// SlotWait bounds one wait for a free worker slot.
	SlotWait time.Duration
	// IncreasedRipupCosts starts the run with increased ripup costs.
	IncreasedRipupCosts bool
	// Seed seeds Random item selection. Zero picks a time based seed.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.UpdateStrategy == "" {
		c.UpdateStrategy = Greedy
	}
	if c.SelectionStrategy == "" {
		c.SelectionStrategy = Sequential
	}
	if c.UpdateStrategy == Hybrid && c.HybridRatio == "" {
		c.HybridRatio = DefaultHybridRatio
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SlotWait <= 0 {
		c.SlotWait = DefaultSlotWait
	}
	return c
}

// Validate reports every invalid field. A malformed HybridRatio is not an
// error; the scheduler falls back to the default ratio.
func (c Config) Validate() error {
	var err error
	if c.PoolSize < 1 {
		err = multierr.Append(err, fmt.Errorf("pool size must be at least 1, got %d", c.PoolSize))
	}
	switch c.UpdateStrategy {
	case Greedy, GlobalOptimal, Hybrid:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown board update strategy %q", c.UpdateStrategy))
	}
	switch c.SelectionStrategy {
	case Sequential, Random, Prioritized:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown item selection strategy %q", c.SelectionStrategy))
	}
	if c.PollInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval))
	}
	if c.SlotWait < 0 {
		err = multierr.Append(err, fmt.Errorf("slot wait must not be negative, got %s", c.SlotWait))
	}
	return err
}
