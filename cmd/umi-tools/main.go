// Command umi-tools builds umi packages and lerna workspaces
package main

import (
	"os"

	"github.com/lambGirl/umi-tools/pkg/cli"
)

var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(version); err != nil {
		os.Exit(1)
	}
}
