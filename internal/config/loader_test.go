package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "novel-writer/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithProjectDir(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, ".novel/novel.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 12000, cfg.Pipeline.ContextBudget)
	assert.Equal(t, 3000, cfg.Pipeline.PreviousTailRunes)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.Backoff.Initial)
	assert.InDelta(t, 0.2, cfg.Pipeline.Stages.Reviewer.Temperature, 1e-9)
	assert.False(t, cfg.Cache.Redis.Enabled)
}

func TestLoadProjectFileWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOVEL_TEST_API_KEY", "sk-from-env")

	content := `
pipeline:
  max_retries: 5
  context_budget: 800
llm:
  default_provider: local
  providers:
    local:
      api_key: ${NOVEL_TEST_API_KEY}
      base_url: ${NOVEL_TEST_BASE_URL:http://127.0.0.1:11434/v1}
      model: qwen
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(WithProjectDir(dir))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 800, cfg.Pipeline.ContextBudget)
	assert.Equal(t, "local", cfg.LLM.DefaultProvider)
	require.Contains(t, cfg.LLM.Providers, "local")
	assert.Equal(t, "sk-from-env", cfg.LLM.Providers["local"].APIKey)
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.LLM.Providers["local"].BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	content := `
pipeline:
  stages:
    writer:
      temperature: 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	_, err := Load(WithProjectDir(dir))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "writer")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	require.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("NOVEL_TEST_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${NOVEL_TEST_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${NOVEL_TEST_UNSET_VAR:fallback}"))
	assert.Equal(t, "c=${NOVEL_TEST_UNSET_VAR}", expandEnv("c=${NOVEL_TEST_UNSET_VAR}"))
}
