package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codivex/codivex/internal/front"
	"github.com/codivex/codivex/internal/search"
	"github.com/codivex/codivex/internal/store"
)

type stubPipeline struct {
	result search.QueryResult
	err    error
}

func (p *stubPipeline) Query(_ context.Context, _, _ string, _ int) (search.QueryResult, error) {
	return p.result, p.err
}

func newTestServer(t *testing.T, pipeline front.Pipeline) *Server {
	t.Helper()
	root := t.TempDir()
	ps, err := store.NewProjectStore(filepath.Join(root, ".codivex"))
	require.NoError(t, err)
	require.NoError(t, ps.Select(filepath.Join(root, "proj")))

	rf := front.New(pipeline, search.NewQueryCache(0), ps, nil)
	srv, err := NewServer(rf)
	require.NoError(t, err)
	return srv
}

func TestNewServerRejectsNilFront(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
}

func TestHandleSearchCodeReturnsItems(t *testing.T) {
	pipeline := &stubPipeline{result: search.QueryResult{Items: []search.SearchResultItem{
		{File: "a.go", Function: "Foo", StartLine: 1, EndLine: 5, CodeBlock: "func Foo() {}"},
	}}}
	srv := newTestServer(t, pipeline)

	_, output, err := srv.handleSearchCode(context.Background(), nil, SearchCodeInput{Query: "foo"})
	require.NoError(t, err)
	require.Len(t, output.Items, 1)
	assert.Equal(t, "Foo", output.Items[0].Function)
}

func TestHandleSearchCodeMapsErrors(t *testing.T) {
	srv := newTestServer(t, &stubPipeline{})

	_, _, err := srv.handleSearchCode(context.Background(), nil, SearchCodeInput{Query: ""})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, -32602, mcpErr.Code)
}

func TestHandleOpenLocationValidatesRange(t *testing.T) {
	srv := newTestServer(t, &stubPipeline{})

	_, _, err := srv.handleOpenLocation(context.Background(), nil, OpenLocationInput{Path: "/tmp/x", LineStart: 10, LineEnd: 1})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, -32602, mcpErr.Code)
}

func TestSearchCodeInputAcceptsSnakeCase(t *testing.T) {
	var in SearchCodeInput
	require.NoError(t, json.Unmarshal([]byte(`{"query":"foo","top_k":7,"repo_filter":"alpha"}`), &in))
	assert.Equal(t, "foo", in.Query)
	assert.Equal(t, 7, in.TopK)
	assert.Equal(t, "alpha", in.RepoFilter)
}

func TestSearchCodeInputAcceptsCamelCase(t *testing.T) {
	var in SearchCodeInput
	require.NoError(t, json.Unmarshal([]byte(`{"query":"foo","topK":7,"repoFilter":"alpha"}`), &in))
	assert.Equal(t, "foo", in.Query)
	assert.Equal(t, 7, in.TopK)
	assert.Equal(t, "alpha", in.RepoFilter)
}

func TestOpenLocationInputAcceptsCamelCase(t *testing.T) {
	var in OpenLocationInput
	require.NoError(t, json.Unmarshal([]byte(`{"path":"/tmp/x","lineStart":2,"lineEnd":4,"repoFilter":"alpha"}`), &in))
	assert.Equal(t, "/tmp/x", in.Path)
	assert.Equal(t, 2, in.LineStart)
	assert.Equal(t, 4, in.LineEnd)
	assert.Equal(t, "alpha", in.RepoFilter)
}

func TestOpenLocationInputAcceptsSnakeCase(t *testing.T) {
	var in OpenLocationInput
	require.NoError(t, json.Unmarshal([]byte(`{"path":"/tmp/x","line_start":2,"line_end":4}`), &in))
	assert.Equal(t, 2, in.LineStart)
	assert.Equal(t, 4, in.LineEnd)
}
