// Package cli provides the command-line interface for umi-tools
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lambGirl/umi-tools/internal/engine"
	"github.com/lambGirl/umi-tools/pkg/config"
	"github.com/lambGirl/umi-tools/pkg/logger"
)

// CLI encapsulates the command-line interface and makes it testable
// by eliminating global state
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	// resolved in PersistentPreRunE
	cwd      string
	settings *config.Config

	overrides engine.Dependencies
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// WithDependencies replaces the default build dependencies with the non-nil
// fields of deps
func (c *CLI) WithDependencies(deps engine.Dependencies) *CLI {
	c.overrides = deps
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "umi-tools",
		Short: "Build tools for umi packages and workspaces",
		Long: `umi-tools compiles the src directory of a package, or of every package in a
lerna workspace, into lib. Browser files listed under umiTools.browserFiles in
package.json are compiled for browsers, everything else for node.`,

		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("umi-tools v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newBuildCmd())
	c.rootCmd.AddCommand(c.newRollupCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: umi-tools.config.{json,yaml} in --cwd)")
	flags.StringVar(&c.config.Cwd, "cwd", c.config.Cwd, "working directory")

	flags.String("source-dir", "", "source directory of each package (default \"src\")")
	flags.String("output-dir", "", "output directory of each package (default \"lib\")")
	flags.StringSlice("exclude", nil, "extra exclusion globs relative to the source directory; a glob without \"/\" matches file names at any depth")
	flags.Int("concurrency", 0, "files transformed in parallel per package (default: number of CPUs)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file")
	flags.Bool("notify", false, "desktop notification when the build completes or a file fails")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	flags.String("node-version", "", "node version node-targeted files are compiled for")
	flags.String("browser-target", "", "language level of browser-targeted files, e.g. es2017")
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	cwd, err := resolveCwd(c.config.Cwd)
	if err != nil {
		return err
	}

	settings, path, err := loadSettings(cwd, c.config.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}

	c.cwd = cwd
	c.settings = settings
	c.logger = c.createLogger(settings)

	if path != "" {
		c.logger.Debug("Using config file", logger.WithField("file", path))
	}
	return nil
}

func (c *CLI) createLogger(settings *config.Config) logger.Logger {
	if c.output == os.Stdout {
		return logger.CreateLogger(settings.LogFile, settings.LogLevel)
	}
	return logger.CreateLoggerWithOutput(settings.LogLevel, c.output)
}

// ExecuteWithVersion runs the CLI with os.Args
func ExecuteWithVersion(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}
