package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"routeopt/internal/opt"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	sc, err := cfg.Optimizer.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, opt.Greedy, sc.UpdateStrategy)
	assert.Equal(t, opt.Sequential, sc.SelectionStrategy)
	assert.True(t, sc.IncreasedRipupCosts)
	assert.Equal(t, time.Minute, sc.PollInterval)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "routeopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
optimizer:
  threads: 6
  updateStrategy: hybrid
  hybridRatio: "3:1"
  selectionStrategy: prioritized
  pollInterval: 15s
  increasedRipupCosts: false
server:
  listen: ":9090"
log:
  verbosity: 4
`), 0o644))

	cfg, err := Load(path, testr.New(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Optimizer.Threads)
	assert.Equal(t, 15*time.Second, cfg.Optimizer.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.Optimizer.SlotWait, "unset keys keep their default")
	assert.Equal(t, 100, cfg.Optimizer.MaxRounds)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 4, cfg.Log.Verbosity)

	sc, err := cfg.Optimizer.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, opt.Hybrid, sc.UpdateStrategy)
	assert.Equal(t, opt.Prioritized, sc.SelectionStrategy)
	assert.Equal(t, "3:1", sc.HybridRatio)
	assert.False(t, sc.IncreasedRipupCosts)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  workers: 3\n"), 0o644))
	_, err := Load(path, testr.New(t))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testr.New(t))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROUTEOPT_THREADS", "3")
	t.Setenv("ROUTEOPT_UPDATE_STRATEGY", "global-optimal")
	t.Setenv("ROUTEOPT_SLOT_WAIT", "10s")
	t.Setenv("ROUTEOPT_INCREASED_RIPUP_COSTS", "false")
	t.Setenv("ROUTEOPT_MAX_ROUNDS", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/routeopt")
	t.Setenv("PORT", "8081")

	cfg, err := Load("", testr.New(t))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Optimizer.Threads)
	assert.Equal(t, "global-optimal", cfg.Optimizer.UpdateStrategy)
	assert.Equal(t, 10*time.Second, cfg.Optimizer.SlotWait)
	assert.False(t, cfg.Optimizer.IncreasedRipupCosts)
	assert.Equal(t, 100, cfg.Optimizer.MaxRounds, "malformed values keep the previous value")
	assert.Equal(t, "postgres://localhost/routeopt", cfg.Database.URL)
	assert.Equal(t, ":8081", cfg.Server.Listen)
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Optimizer.Threads = 0
	cfg.Optimizer.UpdateStrategy = "eager"
	cfg.Optimizer.SelectionStrategy = "shuffle"
	cfg.Optimizer.PollInterval = 0
	cfg.Progress.Burst = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
}

func TestMalformedHybridRatioIsNotAnError(t *testing.T) {
	cfg := Default()
	cfg.Optimizer.UpdateStrategy = "hybrid"
	cfg.Optimizer.HybridRatio = "abc"
	require.NoError(t, cfg.Validate())
	sc, err := cfg.Optimizer.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, "abc", sc.HybridRatio)
}

func TestWebhookSettings(t *testing.T) {
	t.Setenv("ROUTEOPT_WEBHOOK_URLS", " https://ci.example.com/hook, ,http://localhost:9000/rounds")
	t.Setenv("ROUTEOPT_WEBHOOK_SECRET", "s3cret")
	cfg, err := Load("", testr.New(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://ci.example.com/hook", "http://localhost:9000/rounds"}, cfg.Webhooks.URLs)
	assert.Equal(t, "s3cret", cfg.Webhooks.Secret)
	assert.Equal(t, 5, cfg.Webhooks.MaxAttempts)
	require.NoError(t, cfg.Validate())

	cfg.Webhooks.URLs = append(cfg.Webhooks.URLs, "ftp://files.example.com")
	cfg.Webhooks.MaxAttempts = 0
	assert.Len(t, multierr.Errors(cfg.Validate()), 2)
}
