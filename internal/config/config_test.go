package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "OPENAI_BASE_URL", "OPENAI_MODEL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Cache.TTLSec)
	assert.Equal(t, 3, cfg.Market.Retry.Attempts)
	assert.Equal(t, 1000, cfg.Market.Retry.BackoffMs)
	assert.Equal(t, 15000, cfg.Market.RequestTimeoutMs)
	assert.Equal(t, 12, cfg.News.MaxResults)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Empty(t, cfg.Store.Sqlite.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
cache:
  ttl_sec: 60
market:
  retry:
    attempts: 5
llm:
  model: deepseek-chat
store:
  sqlite:
    path: data/settings.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Cache.TTLSec)
	assert.Equal(t, 5, cfg.Market.Retry.Attempts)
	// untouched nested fields keep their defaults
	assert.Equal(t, 1000, cfg.Market.Retry.BackoffMs)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, "data/settings.db", cfg.Store.Sqlite.Path)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [port")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "https://llm.example/v1")
	t.Setenv("OPENAI_MODEL", "gpt-test")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "av-key", cfg.Market.AlphaVantage.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.example/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
}

func TestLoad_InvalidPort(t *testing.T) {
	for _, v := range []string{"abc", "0", "70000"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("PORT", v)
			_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid PORT")
		})
	}
}
