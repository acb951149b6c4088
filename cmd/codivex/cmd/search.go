package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codivex/codivex/internal/front"
	"github.com/codivex/codivex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
	scope  string
	stream bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using hybrid search.

Combines BM25 (keyword) and semantic (embedding) search with
Reciprocal Rank Fusion for a single ranked result set.

Examples:
  codivex search "authentication middleware"
  codivex search "handleRequest" --limit 5
  codivex search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "", "Restrict search to a project scope")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Emit results as a streaming event sequence (result/done/error)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	rt, cleanup, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := front.SearchCodeRequest{
		Query:      query,
		TopK:       opts.limit,
		RepoFilter: opts.scope,
	}

	if opts.stream {
		return runSearchStream(ctx, cmd, rt, req)
	}

	resp, err := rt.front.SearchCode(ctx, req)
	if err != nil {
		return fmt.Errorf("codivex: search: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Items)
	}
	return formatSearchResultsText(cmd, query, resp.Items)
}

// runSearchStream drains the §6.2 streaming variant, printing one line per
// event as it arrives rather than buffering the full result set.
func runSearchStream(ctx context.Context, cmd *cobra.Command, rt *runtime, req front.SearchCodeRequest) error {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	for ev := range rt.front.SearchCodeStream(ctx, req) {
		switch ev.Kind {
		case front.StreamEventResult:
			fmt.Fprintf(out, "result: ")
			if err := enc.Encode(ev.Item); err != nil {
				return err
			}
		case front.StreamEventDone:
			fmt.Fprintln(out, "done: complete")
		case front.StreamEventError:
			fmt.Fprintf(out, "error: %s: %s\n", ev.Status.Status, ev.Status.Message)
			return fmt.Errorf("codivex: search: %s", ev.Status.Message)
		}
	}
	return nil
}

func formatSearchResultsText(cmd *cobra.Command, query string, items []search.SearchResultItem) error {
	out := cmd.OutOrStdout()

	if len(items) == 0 {
		fmt.Fprintf(out, "No results found for %q\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for %q:\n\n", len(items), query)
	for i, item := range items {
		location := item.File
		if item.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", item.File, item.StartLine)
		}
		fmt.Fprintf(out, "%d. %s", i+1, location)
		if item.Function != "" {
			fmt.Fprintf(out, " (%s)", item.Function)
		}
		fmt.Fprintln(out)

		for _, line := range snippetLines(item.CodeBlock, 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// snippetLines returns the first n non-trailing-empty lines of content.
func snippetLines(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
