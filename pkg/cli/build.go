package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lambGirl/umi-tools/internal/engine"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/metrics"
	"github.com/lambGirl/umi-tools/pkg/process"
)

const shutdownTimeout = 5 * time.Second

func (c *CLI) newBuildCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile src into lib for every package",
		Long: `Compile the source directory of the package in --cwd, or of every package
under packages/ when --cwd holds a lerna.json, into its output directory.

With --watch the process stays resident after the initial build and
recompiles each file as it changes. Deleted files are not removed from the
output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild files as they change")

	return cmd
}

func (c *CLI) runBuild(ctx context.Context, watch bool) error {
	pm := process.NewManager(c.logger)
	ctx = pm.Start(ctx)
	defer pm.Stop()

	registry, err := c.startMetrics(pm)
	if err != nil {
		return err
	}

	factory := engine.NewDependencyFactory(c.logger, c.settings, registry)
	deps, err := factory.CreateWithOverrides(c.overrides)
	if err != nil {
		return err
	}

	orchestrator, err := engine.New(engine.Options{
		Cwd:         c.cwd,
		Watch:       watch,
		SourceDir:   c.settings.SourceDir,
		OutputDir:   c.settings.OutputDir,
		Concurrency: c.settings.Concurrency,
	}, c.logger, deps)
	if err != nil {
		return err
	}

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	if failed := summary.Failed(); failed > 0 {
		c.logger.Warn(fmt.Sprintf("%d file(s) failed to compile", failed))
	}
	return nil
}

// startMetrics serves Prometheus metrics when an address is configured and
// returns the registry build metrics are recorded on
func (c *CLI) startMetrics(pm *process.Manager) (*prometheus.Registry, error) {
	if c.settings.MetricsAddr == "" {
		return nil, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := metrics.Listen(c.settings.MetricsAddr, registry)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Serving metrics", logger.WithField("addr", server.Addr()))

	pm.RegisterShutdownHandler(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			c.logger.Warn("Failed to stop metrics server", logger.WithField("error", err.Error()))
		}
	})
	return registry, nil
}
