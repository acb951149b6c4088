// Package main provides the entry point for the codivex CLI.
package main

import (
	"os"

	"github.com/codivex/codivex/cmd/codivex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
