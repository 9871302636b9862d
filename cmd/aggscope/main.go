// Command aggscope compiles, validates and runs scope-registry specs.
package main

import (
	"fmt"
	"os"

	"github.com/phantien133/active-aggregate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
