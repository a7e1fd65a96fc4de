package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lambGirl/umi-tools/pkg/config"
)

// EnvPrefix prefixes environment overrides, e.g. UMI_TOOLS_OUTPUTDIR=es
const EnvPrefix = "UMI_TOOLS"

// Config holds the invocation-level CLI settings, making it testable and
// eliminating globals
type Config struct {
	ConfigFile string
	Cwd        string
	Version    string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Cwd:     ".",
		Version: "dev",
	}
}

// flagKeys maps persistent flag names to configuration keys
var flagKeys = map[string]string{
	"source-dir":     "sourceDir",
	"output-dir":     "outputDir",
	"exclude":        "exclude",
	"concurrency":    "concurrency",
	"log-level":      "logLevel",
	"log-file":       "logFile",
	"notify":         "notify",
	"metrics-addr":   "metricsAddr",
	"node-version":   "nodeVersion",
	"browser-target": "browserTarget",
}

// loadSettings resolves the build settings for cwd. Precedence, lowest
// first: defaults, config file, .env, UMI_TOOLS_* environment, flags.
func loadSettings(cwd, configFile string, flags *pflag.FlagSet) (*config.Config, string, error) {
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("failed to load .env: %w", err)
	}

	manager := config.NewManager()
	base := config.Default()

	path := configFile
	if path == "" {
		path, _ = manager.Find(cwd)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	if path != "" {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		base = loaded
	}

	v := viper.New()
	v.SetDefault("sourceDir", base.SourceDir)
	v.SetDefault("outputDir", base.OutputDir)
	v.SetDefault("exclude", base.Exclude)
	v.SetDefault("concurrency", base.Concurrency)
	v.SetDefault("logLevel", base.LogLevel)
	v.SetDefault("logFile", base.LogFile)
	v.SetDefault("notify", base.Notify)
	v.SetDefault("metricsAddr", base.MetricsAddr)
	v.SetDefault("nodeVersion", base.NodeVersion)
	v.SetDefault("browserTarget", base.BrowserTarget)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, "", err
			}
		}
	}

	var settings config.Config
	if err := v.Unmarshal(&settings); err != nil {
		return nil, "", fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	settings.ApplyDefaults()
	if err := manager.ValidateConfig(&settings); err != nil {
		return nil, "", err
	}

	return &settings, path, nil
}

// resolveCwd returns the absolute working directory and checks it exists
func resolveCwd(cwd string) (string, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", config.ErrInvalidConfig, abs)
	}
	return abs, nil
}
