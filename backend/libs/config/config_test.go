package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nestedConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"TEST_HTTP_PORT"`
	} `yaml:"http"`
	Cache struct {
		TTL     int     `yaml:"ttl"`
		Enabled bool    `yaml:"enabled"`
		Ratio   float64 `yaml:"ratio"`
	} `yaml:"cache"`
	Skipped string `env:"-"`
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: \"9000\"\ncache:\n  ttl: 30\n  ratio: 0.5\n"), 0o600))

	t.Setenv(dotenvPathEnv, filepath.Join(dir, "missing.env"))
	t.Setenv(defaultConfigPathEnv, path)
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("CACHE_ENABLED", "true")

	// DOTENV_FILE set explicitly to a missing file is an error.
	var cfg nestedConfig
	require.Error(t, LoadConfig(&cfg))

	emptyEnv := filepath.Join(dir, "empty.env")
	require.NoError(t, os.WriteFile(emptyEnv, nil, 0o600))
	t.Setenv(dotenvPathEnv, emptyEnv)

	cfg = nestedConfig{}
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, 60, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.InDelta(t, 0.5, cfg.Cache.Ratio, 1e-9)
}

func TestLoadConfigDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "service.env")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST_HTTP_PORT=7070\nSKIPPED=ignored\n"), 0o600))

	t.Setenv(dotenvPathEnv, envPath)
	t.Setenv(defaultConfigPathEnv, "")
	t.Cleanup(func() {
		_ = os.Unsetenv("TEST_HTTP_PORT")
		_ = os.Unsetenv("SKIPPED")
	})

	var cfg nestedConfig
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Empty(t, cfg.Skipped)
}

func TestLoadConfigRejectsBadTargets(t *testing.T) {
	require.Error(t, LoadConfig(nil))

	var notStruct int
	require.Error(t, LoadConfig(&notStruct))
}

func TestLoadConfigParseError(t *testing.T) {
	emptyEnv := filepath.Join(t.TempDir(), "none.env")
	require.NoError(t, os.WriteFile(emptyEnv, nil, 0o600))
	t.Setenv(dotenvPathEnv, emptyEnv)
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("CACHE_TTL", "not-a-number")

	var cfg nestedConfig
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
}
