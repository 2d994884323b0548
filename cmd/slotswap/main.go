// Command slotswap runs the slot swap negotiation service and its
// maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/slotswap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
