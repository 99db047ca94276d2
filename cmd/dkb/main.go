// Package main provides the entry point for the dkb CLI.
package main

import (
	"os"

	"github.com/locchh/dkb/cmd/dkb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
