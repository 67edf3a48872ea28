// Command cartsync is the cart reconciler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cartsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
