package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "insight.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.InDelta(t, 1.0, cfg.Perplexity.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.Perplexity.Burst)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.StructuredTimeout)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.SemanticTimeout)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.ExternalTimeout)
	assert.Equal(t, 12, cfg.Retrieval.FragmentBudget)
	assert.Equal(t, 50, cfg.Retrieval.MaxRows)
	assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
	assert.Equal(t, 30, cfg.Resilience.ResetTimeoutSecs)
	assert.Equal(t, 3, cfg.Resilience.RetryAttempts)
	assert.Equal(t, 500, cfg.Resilience.RetryBackoffMs)
	assert.Equal(t, 30000, cfg.Resilience.RetryMaxWaitMs)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/insight
log:
  level: debug
  format: console
retrieval:
  fragment_budget: 20
  semantic_timeout: 1s
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/insight", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Retrieval.FragmentBudget)
	assert.Equal(t, time.Second, cfg.Retrieval.SemanticTimeout)
	// Defaults still apply for unset values
	assert.Equal(t, 10*time.Second, cfg.Retrieval.ExternalTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	dir, _ := os.Getwd()
	yaml := "log:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INSIGHT_LOG_LEVEL", "error")
	t.Setenv("INSIGHT_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
}

func TestInitLoggerBadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "shout", Format: "json"}))
}
