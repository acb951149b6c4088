// Package cmd provides the CLI commands for codivex.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codivex/codivex/pkg/version"
)

// NewRootCmd creates the root command for the codivex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codivex",
		Short: "Local-first hybrid code search and indexing service",
		Long: `codivex indexes a codebase into lexical and semantic indexes and
serves hybrid (BM25 + embedding) search over it for AI coding assistants.

It runs entirely locally with zero configuration required.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("codivex version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute builds and runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
