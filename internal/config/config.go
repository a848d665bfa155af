// Package config provides YAML-based configuration with .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up next to the working directory.
const DefaultConfigFile = "codewave.yaml"

// AppConfig is the root configuration document.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Advanced AdvancedConfig `yaml:"advanced"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCORS"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// AnalysisConfig locates the remote analysis service.
type AnalysisConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// StorageConfig contains staging settings
type StorageConfig struct {
	StagingDirectory string `yaml:"stagingDirectory"`
}

// SessionConfig controls browser session lifetime.
type SessionConfig struct {
	TimeoutMinutes         int `yaml:"timeoutMinutes"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
	MaxSessions            int `yaml:"maxSessions"`
}

// AdvancedConfig contains logging and transport tuning
type AdvancedConfig struct {
	LogLevel             string `yaml:"logLevel"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
	EnableCompression    bool   `yaml:"enableCompression"`
	CompressionLevel     int    `yaml:"compressionLevel"`
}

// TracingConfig configures OTLP trace export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
	Insecure    bool   `yaml:"insecure"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:5173,http://127.0.0.1:5173",
			ReadTimeout:  30,
			WriteTimeout: 0, // uploads wait for the analysis service
			IdleTimeout:  120,
			BodyLimit:    "50M",
		},
		Analysis: AnalysisConfig{
			Endpoint: "http://localhost:5000/upload",
		},
		Storage: StorageConfig{
			StagingDirectory: "./data/staging",
		},
		Session: SessionConfig{
			TimeoutMinutes:         30,
			CleanupIntervalMinutes: 5,
			MaxSessions:            1000,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableCompression:    true,
			CompressionLevel:     5,
		},
		Tracing: TracingConfig{
			ServiceName: "codewave-panel",
			Insecure:    true,
		},
	}
}

// LoadConfig reads configPath, creating it with defaults on first run, then
// applies .env and environment overrides. Relative paths are resolved
// against the config file's directory.
func LoadConfig(configPath string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()
	cfg.resolvePaths(filepath.Dir(configPath))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Codewave panel configuration\n# This file is auto-generated on first run\n\n")
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Analysis.Endpoint == "" {
		errs = append(errs, errors.New("analysis.endpoint is required"))
	}
	if c.Session.TimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("session.timeoutMinutes must be positive: %d", c.Session.TimeoutMinutes))
	}
	if c.Session.CleanupIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("session.cleanupIntervalMinutes must be positive: %d", c.Session.CleanupIntervalMinutes))
	}
	if _, ok := ParseLogLevel(c.Advanced.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("advanced.logLevel unknown: %q", c.Advanced.LogLevel))
	}
	return errors.Join(errs...)
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if endpoint := os.Getenv("ANALYSIS_ENDPOINT"); endpoint != "" {
		c.Analysis.Endpoint = endpoint
	}
	if dir := os.Getenv("STAGING_DIR"); dir != "" {
		c.Storage.StagingDirectory = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Tracing.Endpoint = endpoint
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		c.Tracing.ServiceName = name
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.StagingDirectory) {
		c.Storage.StagingDirectory = filepath.Join(configDir, c.Storage.StagingDirectory)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetAllowOrigins splits the comma separated origin list.
func (c *AppConfig) GetAllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.StagingDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Storage.StagingDirectory, err)
	}
	return nil
}
