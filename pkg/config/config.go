// Package config loads the parley server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Agent    AgentConfig    `yaml:"agent"`
	Terminal TerminalConfig `yaml:"terminal"`
	Console  ConsoleConfig  `yaml:"console"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the SQLite database path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name    string `yaml:"name"` // "openai" or "gemini"
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AgentConfig bounds agent runs.
type AgentConfig struct {
	System   string `yaml:"system"`
	MaxSteps int    `yaml:"max_steps"`

	ModelTimeout time.Duration `yaml:"-"`
	ToolTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ModelTimeoutRaw string `yaml:"model_timeout"`
	ToolTimeoutRaw  string `yaml:"tool_timeout"`
}

// TerminalConfig configures the sandboxed terminal backend.
type TerminalConfig struct {
	Image   string `yaml:"image"`
	Workdir string `yaml:"workdir"`
}

// ConsoleConfig configures the browser console bridge.
type ConsoleConfig struct {
	LogBuffer int `yaml:"log_buffer"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a configuration file from the given path.
// Environment variables in the format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := parseDurations(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with usable defaults for everything
// except the provider API key.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8000"},
		Database: DatabaseConfig{Path: "parley.db"},
		Provider: ProviderConfig{Name: "openai", Model: "gpt-4o"},
		Agent: AgentConfig{
			MaxSteps:     10,
			ModelTimeout: 2 * time.Minute,
			ToolTimeout:  time.Minute,
		},
		Terminal: TerminalConfig{Image: "ubuntu:24.04", Workdir: "/workspace"},
		Console:  ConsoleConfig{LogBuffer: 500},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.Agent.ModelTimeoutRaw != "" {
		cfg.Agent.ModelTimeout, err = time.ParseDuration(cfg.Agent.ModelTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.model_timeout %q: %w", cfg.Agent.ModelTimeoutRaw, err)
		}
	}
	if cfg.Agent.ToolTimeoutRaw != "" {
		cfg.Agent.ToolTimeout, err = time.ParseDuration(cfg.Agent.ToolTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.tool_timeout %q: %w", cfg.Agent.ToolTimeoutRaw, err)
		}
	}
	return nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Provider.Name {
	case "openai", "gemini":
	default:
		return fmt.Errorf("provider.name must be openai or gemini, got %q", c.Provider.Name)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive")
	}
	if c.Console.LogBuffer <= 0 {
		return fmt.Errorf("console.log_buffer must be positive")
	}
	return nil
}
