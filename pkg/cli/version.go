package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of umi-tools",
		Long:  `Print the version number of umi-tools`,
		Args:  cobra.NoArgs,
		// The version needs no settings, so it works outside a package too.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "umi-tools v%s\n", c.config.Version)
		},
	}
}
