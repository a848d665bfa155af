package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "ANALYSIS_ENDPOINT", "STAGING_DIR", "LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME"} {
		t.Setenv(key, "")
	}
	// godotenv reads .env from the working directory
	t.Chdir(t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000/upload", cfg.Analysis.Endpoint)
	assert.Equal(t, 30, cfg.Session.TimeoutMinutes)
	assert.Equal(t, "info", cfg.Advanced.LogLevel)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddr())
}

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config should be written on first run")
	assert.Equal(t, filepath.Join(dir, "data", "staging"), cfg.Storage.StagingDirectory)
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)

	cfg := DefaultConfig()
	cfg.Server.Port = 9090
	cfg.Analysis.Endpoint = "http://analysis.internal/upload"
	cfg.Storage.StagingDirectory = "/var/tmp/staging"
	cfg.Session.MaxSessions = 12
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, loaded.Server.Port)
	assert.Equal(t, "http://analysis.internal/upload", loaded.Analysis.Endpoint)
	assert.Equal(t, "/var/tmp/staging", loaded.Storage.StagingDirectory)
	assert.Equal(t, 12, loaded.Session.MaxSessions)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	t.Setenv("PORT", "7000")
	t.Setenv("ANALYSIS_ENDPOINT", "http://env/upload")
	t.Setenv("STAGING_DIR", "/tmp/env-staging")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "panel-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "http://env/upload", cfg.Analysis.Endpoint)
	assert.Equal(t, "/tmp/env-staging", cfg.Storage.StagingDirectory)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "panel-test", cfg.Tracing.ServiceName)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("ANALYSIS_ENDPOINT")
	require.NoError(t, os.WriteFile(".env", []byte("ANALYSIS_ENDPOINT=http://dotenv/upload\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ANALYSIS_ENDPOINT") })

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv/upload", cfg.Analysis.Endpoint)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"port zero", func(c *AppConfig) { c.Server.Port = 0 }, "server.port"},
		{"no endpoint", func(c *AppConfig) { c.Analysis.Endpoint = "" }, "analysis.endpoint"},
		{"no timeout", func(c *AppConfig) { c.Session.TimeoutMinutes = 0 }, "session.timeoutMinutes"},
		{"no cleanup interval", func(c *AppConfig) { c.Session.CleanupIntervalMinutes = -1 }, "session.cleanupIntervalMinutes"},
		{"bad log level", func(c *AppConfig) { c.Advanced.LogLevel = "verbose" }, "advanced.logLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestGetAllowOrigins(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.GetAllowOrigins())

	cfg.Server.AllowOrigins = " , "
	assert.Equal(t, []string{"*"}, cfg.GetAllowOrigins())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Lvl
		ok   bool
	}{
		{"debug", log.DEBUG, true},
		{"INFO", log.INFO, true},
		{"", log.INFO, true},
		{"warning", log.WARN, true},
		{"error", log.ERROR, true},
		{"off", log.OFF, true},
		{"loud", log.INFO, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.StagingDirectory = filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.Storage.StagingDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
