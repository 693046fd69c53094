// Command osversion translates OpenStudio models between schema versions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/osversion/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "osversion: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
