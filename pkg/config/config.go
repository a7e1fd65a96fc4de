// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileName is the base name of the optional configuration file
const FileName = "umi-tools.config"

// Defaults for directory conventions.
const (
	DefaultSourceDir = "src"
	DefaultOutputDir = "lib"
	DefaultLogLevel  = "info"
)

// ErrInvalidConfig is returned when a configuration value is unusable
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings shared by all commands. Values come from the
// config file, then UMI_TOOLS_* environment variables, then flags.
type Config struct {
	SourceDir     string   `json:"sourceDir" yaml:"sourceDir" mapstructure:"sourceDir"`
	OutputDir     string   `json:"outputDir" yaml:"outputDir" mapstructure:"outputDir"`
	Exclude       []string `json:"exclude,omitempty" yaml:"exclude,omitempty" mapstructure:"exclude"`
	Concurrency   int      `json:"concurrency,omitempty" yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	LogLevel      string   `json:"logLevel,omitempty" yaml:"logLevel,omitempty" mapstructure:"logLevel"`
	LogFile       string   `json:"logFile,omitempty" yaml:"logFile,omitempty" mapstructure:"logFile"`
	Notify        bool     `json:"notify,omitempty" yaml:"notify,omitempty" mapstructure:"notify"`
	MetricsAddr   string   `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty" mapstructure:"metricsAddr"`
	NodeVersion   string   `json:"nodeVersion,omitempty" yaml:"nodeVersion,omitempty" mapstructure:"nodeVersion"`
	BrowserTarget string   `json:"browserTarget,omitempty" yaml:"browserTarget,omitempty" mapstructure:"browserTarget"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		SourceDir:   DefaultSourceDir,
		OutputDir:   DefaultOutputDir,
		Concurrency: runtime.NumCPU(),
		LogLevel:    DefaultLogLevel,
	}
}

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.SourceDir == "" {
		c.SourceDir = d.SourceDir
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// Find returns the configuration file in dir, if any
func (m *Manager) Find(dir string) (string, bool) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, FileName+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadConfig loads configuration from a file, trying JSON first and then YAML
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// YAML goes through a generic map so the json tags stay authoritative
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			cfg = Config{}
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validateConfig(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("%w: failed to parse %s as JSON or YAML", ErrInvalidConfig, path)
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	for name, dir := range map[string]string{"sourceDir": cfg.SourceDir, "outputDir": cfg.OutputDir} {
		if dir == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, name)
		}
		if filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return fmt.Errorf("%w: %s must be inside the package: %s", ErrInvalidConfig, name, dir)
		}
	}
	if filepath.Clean(cfg.SourceDir) == filepath.Clean(cfg.OutputDir) {
		return fmt.Errorf("%w: sourceDir and outputDir are both %s", ErrInvalidConfig, cfg.SourceDir)
	}
	if filepath.Clean(cfg.OutputDir) == "." {
		return fmt.Errorf("%w: outputDir cannot be the package root", ErrInvalidConfig)
	}

	if cfg.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, cfg.Concurrency)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

func (m *Manager) validateConfig(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
