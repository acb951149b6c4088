package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codivex/codivex/internal/async"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	background bool
}

// newIndexCmd creates the index command: a one-shot full index pass over
// a project, with no watcher started afterward.
func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Run a one-shot full index of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.background, "background", false, "Run indexing in the background and poll progress instead of blocking")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, opts indexOptions) error {
	ctx := cmd.Context()

	rt, cleanup, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !opts.background {
		if err := rt.sup.IndexOnce(ctx, path); err != nil {
			return fmt.Errorf("codivex: index %s: %w", path, err)
		}
		fmt.Fprintf(os.Stdout, "indexed %s\n", path)
		return nil
	}

	return runIndexBackground(ctx, cmd, rt, path)
}

// runIndexBackground drives IndexOnce through BackgroundIndexer so progress
// can be polled while indexing runs, and so a prior run that never finished
// (process killed mid-index) is reported before starting a new one.
func runIndexBackground(ctx context.Context, cmd *cobra.Command, rt *runtime, path string) error {
	out := cmd.OutOrStdout()

	if async.HasIncompleteLock(rt.stateDir) {
		fmt.Fprintf(out, "warning: found an incomplete index lock under %s (a previous run may have been interrupted)\n", rt.stateDir)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("codivex: resolve %s: %w", path, err)
	}

	// IndexOnce reports through rt.sup's own ProjectRuntimeStatus, polled
	// below, so the injected IndexFunc ignores the progress tracker
	// BackgroundIndexer otherwise threads through for its own callers.
	indexer := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: rt.stateDir})
	indexer.IndexFunc = func(ctx context.Context, _ *async.IndexProgress) error {
		return rt.sup.IndexOnce(ctx, abs)
	}

	indexer.Start(ctx)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for indexer.IsRunning() {
		<-ticker.C
		if st, ok := rt.sup.Status(abs); ok {
			fmt.Fprintf(out, "indexing %s: %d chunks so far\n", abs, st.ChunksIndexed)
		}
	}

	if err := indexer.Wait(); err != nil {
		return fmt.Errorf("codivex: background index %s: %w", abs, err)
	}

	fmt.Fprintf(out, "indexed %s\n", abs)
	return nil
}
