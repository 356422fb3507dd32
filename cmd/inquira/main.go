// Package main provides the entry point for the inquira CLI.
package main

import (
	"os"

	"github.com/inquira/inquira/cmd/inquira/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
