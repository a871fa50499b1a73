package main

import (
	"fmt"
	"os"

	"github.com/roach88/jointstream/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jointstream: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
