// Package main is the entry point for the judfetch CLI.
package main

import (
	"os"

	"github.com/use-agent/judfetch/cmd/judfetch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
