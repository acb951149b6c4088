package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codivex/codivex/internal/mcp"
)

// newServeCmd creates the serve command: it starts the indexing
// supervisor in the background and serves searchCode/openLocation over
// stdio JSON-RPC until the process receives an interrupt.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing supervisor and serve stdio JSON-RPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, cleanup, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := mcp.NewServer(rt.front)
	if err != nil {
		return err
	}

	supErrCh := make(chan error, 1)
	go func() { supErrCh <- rt.sup.Run(ctx) }()

	slog.Info("codivex_serve_started", slog.Any("repo_paths", rt.cfg.RepoPaths))
	serveErr := server.Serve(ctx, "stdio")
	stop()

	rt.front.SetShuttingDown(true)
	supErr := <-supErrCh

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	if supErr != nil && !errors.Is(supErr, context.Canceled) {
		return supErr
	}
	return nil
}
