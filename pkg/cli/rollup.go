package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lambGirl/umi-tools/pkg/bundler"
	"github.com/lambGirl/umi-tools/pkg/process"
)

func (c *CLI) newRollupCmd() *cobra.Command {
	var (
		watch   bool
		globals string
	)

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Bundle umiTools.rollupFiles entries into browser scripts",
		Long: `Bundle every [file, {name}] entry of umiTools.rollupFiles into file.umd.js,
exposing the entry's exports as the global "name". react, react-dom and every
module given with --globals are read from browser globals instead of being
bundled. process.env.NODE_ENV is replaced with the value of NODE_ENV.`,
		Example: `  umi-tools rollup
  umi-tools rollup -w -g jquery:jQuery,lodash:_`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRollup(cmd.Context(), watch, globals)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild bundles as sources change")
	cmd.Flags().StringVarP(&globals, "globals", "g", "", "extra externals as module:Global pairs, comma separated")

	return cmd
}

func (c *CLI) runRollup(ctx context.Context, watch bool, globals string) error {
	b, err := bundler.New(c.logger, bundler.Options{
		Globals: bundler.ParseGlobals(globals),
		NodeEnv: os.Getenv("NODE_ENV"),
		Target:  c.settings.BrowserTarget,
	})
	if err != nil {
		return err
	}

	pm := process.NewManager(c.logger)
	ctx = pm.Start(ctx)
	defer pm.Stop()

	return b.Run(ctx, c.cwd, watch)
}
