package main

import (
	"fmt"
	"os"

	"github.com/mattjoyce/arenakernel/cmd/arenakernel/commands"
)

// Set at build time with -ldflags.
var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	commands.SetVersionInfo(version, gitCommit, buildDate)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
