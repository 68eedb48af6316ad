package main

import (
	"fmt"
	"os"

	"github.com/biterate/socialagent/cmd/biterate/commands"
)

// Set by the release build
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	commands.SetVersion(version, commit, buildTime)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
