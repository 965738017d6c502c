// Package config loads the service's YAML configuration file, expanding
// environment variable references and merging it over built-in defaults,
// following the same load→expand→unmarshal→merge shape as the teacher's
// configuration loader (just scoped down to this service's settings:
// LLM provider, transport, sandbox resource caps, and logging).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// LLMConfig configures the LLM client.
type LLMConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	TimeoutS  int    `yaml:"timeout_seconds"`
}

// TransportConfig configures the HTTP/WebSocket listener.
type TransportConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// SandboxConfig configures the container driver.
type SandboxConfig struct {
	DockerHost      string `yaml:"docker_host"`
	BuildOnInit     bool   `yaml:"build_on_init"`
	BuildContextDir string `yaml:"build_context_dir"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MemoryBytes     int64  `yaml:"memory_bytes"`
	NanoCPUs        int64  `yaml:"nano_cpus"`
	ReaperInterval  string `yaml:"reaper_interval"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// YAMLConfig is the on-disk shape of config.yaml.
type YAMLConfig struct {
	LLM       *LLMConfig       `yaml:"llm"`
	Transport *TransportConfig `yaml:"transport"`
	Sandbox   *SandboxConfig   `yaml:"sandbox"`
	Log       *LogConfig       `yaml:"log"`
}

// Config is the fully resolved, ready-to-use configuration.
type Config struct {
	configDir string

	LLM       LLMConfig
	Transport TransportConfig
	Sandbox   SandboxConfig
	Log       LogConfig
}

// ConfigDir returns the directory config.yaml was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// APIKey resolves the LLM API key from the environment variable named by
// LLM.APIKeyEnv. Secrets are never read from YAML directly and never
// logged.
func (c *Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// Timeout returns the per-execution sandbox deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSeconds) * time.Second
}

// defaults returns the built-in configuration applied before the user's
// YAML is merged on top.
func defaults() *YAMLConfig {
	return &YAMLConfig{
		LLM: &LLMConfig{
			APIKeyEnv: "GEMINI_API_KEY",
			Model:     "gemini-2.0-flash",
			TimeoutS:  60,
		},
		Transport: &TransportConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			AllowedWSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Sandbox: &SandboxConfig{
			BuildOnInit:     false,
			BuildContextDir: "./sandbox-image",
			TimeoutSeconds:  300,
			MemoryBytes:     2 * 1024 * 1024 * 1024,
			NanoCPUs:        2_000_000_000,
			ReaperInterval:  "5m",
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Initialize loads config.yaml from configDir, expands environment
// variables, merges it over the built-in defaults, and returns a
// resolved Config.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"llm_model", cfg.LLM.Model, "transport_port", cfg.Transport.Port,
		"sandbox_timeout_s", cfg.Sandbox.TimeoutSeconds)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	merged := defaults()

	path := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var user YAMLConfig
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, NewLoadError("config.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergo.Merge(merged, &user, mergo.WithOverride); err != nil {
			return nil, NewLoadError("config.yaml", fmt.Errorf("merge with defaults: %w", err))
		}
	case os.IsNotExist(err):
		slog.Warn("config.yaml not found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError("config.yaml", err)
	}

	return &Config{
		configDir: configDir,
		LLM:       *merged.LLM,
		Transport: *merged.Transport,
		Sandbox:   *merged.Sandbox,
		Log:       *merged.Log,
	}, nil
}

func validate(cfg *Config) error {
	if cfg.Transport.Port <= 0 || cfg.Transport.Port > 65535 {
		return NewValidationError("transport", "port", fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Transport.Port))
	}
	if cfg.Sandbox.TimeoutSeconds <= 0 {
		return NewValidationError("sandbox", "timeout_seconds", ErrMissingRequiredField)
	}
	if cfg.Sandbox.MemoryBytes <= 0 {
		return NewValidationError("sandbox", "memory_bytes", ErrMissingRequiredField)
	}
	return nil
}
