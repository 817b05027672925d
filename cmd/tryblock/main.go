// Command tryblock runs exception-handling scenarios against the engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tryblock/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
