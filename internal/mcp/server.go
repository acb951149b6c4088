package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codivex/codivex/internal/front"
	"github.com/codivex/codivex/pkg/version"
)

// SearchCodeInput is searchCode's JSON-RPC parameter shape. Both
// snake_case and camelCase keys are accepted at the tools/call boundary
// per spec.md §6.1 via UnmarshalJSON below; the jsonschema tags describe
// the snake_case form the SDK advertises in tools/list.
type SearchCodeInput struct {
	Query      string `json:"query" jsonschema:"the code search query to execute"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
	RepoFilter string `json:"repo_filter,omitempty" jsonschema:"explicit project scope, overriding the selected project"`
}

// UnmarshalJSON accepts both top_k/topK and repo_filter/repoFilter,
// matching spec.md §6.1's dual key-case requirement.
func (s *SearchCodeInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Query         string `json:"query"`
		TopK          int    `json:"top_k"`
		TopKCamel     int    `json:"topK"`
		RepoFilter    string `json:"repo_filter"`
		RepoFilterCam string `json:"repoFilter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Query = raw.Query
	s.TopK = firstNonZeroInt(raw.TopK, raw.TopKCamel)
	s.RepoFilter = firstNonEmpty(raw.RepoFilter, raw.RepoFilterCam)
	return nil
}

// SearchCodeOutput is searchCode's result shape.
type SearchCodeOutput struct {
	Items []SearchResultItem `json:"items"`
}

// SearchResultItem mirrors search.SearchResultItem for the wire.
type SearchResultItem struct {
	File      string `json:"file"`
	Function  string `json:"function"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	CodeBlock string `json:"code_block"`
}

// OpenLocationInput is openLocation's JSON-RPC parameter shape.
type OpenLocationInput struct {
	Path       string `json:"path" jsonschema:"file path, absolute or relative to the resolved scope"`
	LineStart  int    `json:"line_start" jsonschema:"first line of the range, 1-based"`
	LineEnd    int    `json:"line_end" jsonschema:"last line of the range, inclusive"`
	RepoFilter string `json:"repo_filter,omitempty" jsonschema:"explicit project scope for relative paths"`
}

// UnmarshalJSON accepts both snake_case and camelCase key forms for
// line_start/lineStart, line_end/lineEnd, and repo_filter/repoFilter.
func (o *OpenLocationInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path          string `json:"path"`
		LineStart     int    `json:"line_start"`
		LineStartCam  int    `json:"lineStart"`
		LineEnd       int    `json:"line_end"`
		LineEndCam    int    `json:"lineEnd"`
		RepoFilter    string `json:"repo_filter"`
		RepoFilterCam string `json:"repoFilter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Path = raw.Path
	o.LineStart = firstNonZeroInt(raw.LineStart, raw.LineStartCam)
	o.LineEnd = firstNonZeroInt(raw.LineEnd, raw.LineEndCam)
	o.RepoFilter = firstNonEmpty(raw.RepoFilter, raw.RepoFilterCam)
	return nil
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// OpenLocationOutput echoes the validated, absolute-path location.
type OpenLocationOutput struct {
	Path      string `json:"path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

// Server bridges the MCP SDK's stdio JSON-RPC transport to RequestFront.
// All validation, scope resolution, caching, and latency recording lives
// in internal/front; this package only translates wire shapes.
type Server struct {
	mcp   *mcp.Server
	front *front.RequestFront
	log   *slog.Logger
}

// NewServer builds a Server wired to front.
func NewServer(requestFront *front.RequestFront) (*Server, error) {
	if requestFront == nil {
		return nil, fmt.Errorf("mcp: request front is required")
	}

	s := &Server{
		front: requestFront,
		log:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "codivex", Version: version.Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "searchCode",
		Description: "Hybrid lexical+semantic search over an indexed project's code chunks.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "openLocation",
		Description: "Validate and echo a file path and line range as an absolute location.",
	}, s.handleOpenLocation)

	s.log.Debug("mcp tools registered", slog.Int("count", 2))
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (
	*mcp.CallToolResult,
	SearchCodeOutput,
	error,
) {
	result, err := s.front.SearchCode(ctx, front.SearchCodeRequest{
		Query:      input.Query,
		TopK:       input.TopK,
		RepoFilter: input.RepoFilter,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, MapError(err)
	}

	output := SearchCodeOutput{Items: make([]SearchResultItem, len(result.Items))}
	for i, item := range result.Items {
		output.Items[i] = SearchResultItem{
			File:      item.File,
			Function:  item.Function,
			StartLine: item.StartLine,
			EndLine:   item.EndLine,
			CodeBlock: item.CodeBlock,
		}
	}
	return nil, output, nil
}

func (s *Server) handleOpenLocation(ctx context.Context, _ *mcp.CallToolRequest, input OpenLocationInput) (
	*mcp.CallToolResult,
	OpenLocationOutput,
	error,
) {
	result, err := s.front.OpenLocation(ctx, front.OpenLocationRequest{
		Path:       input.Path,
		LineStart:  input.LineStart,
		LineEnd:    input.LineEnd,
		RepoFilter: input.RepoFilter,
	})
	if err != nil {
		return nil, OpenLocationOutput{}, MapError(err)
	}
	return nil, OpenLocationOutput{Path: result.Path, LineStart: result.LineStart, LineEnd: result.LineEnd}, nil
}

// Serve starts the server on the given transport. Only "stdio" is
// implemented; the transport binding itself is out of core scope per
// spec.md §1, but a runnable entrypoint is part of the carried ambient CLI.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.log.Info("starting codivex mcp server", slog.String("transport", "stdio"))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.log.Error("mcp server stopped with error", slog.String("error", err.Error()))
		}
		return err
	default:
		return fmt.Errorf("mcp: unsupported transport %q (supported: stdio)", transport)
	}
}

// Close releases server resources. The SDK server has no explicit close;
// it stops when its context is canceled.
func (s *Server) Close() error { return nil }
