// Package main is the entry point for the hubctl CLI tool.
package main

import (
	"os"

	"github.com/vibranic/central/cmd/hubctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
