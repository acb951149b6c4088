// Package front holds RequestFront: the transport-agnostic shell around
// QueryPipeline that validates parameters, resolves project scope, checks
// the query cache, and records latency — exercised independently of any
// JSON-RPC or MCP SDK glue.
package front

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/codivex/codivex/internal/errors"
	"github.com/codivex/codivex/internal/search"
	"github.com/codivex/codivex/internal/store"
	"github.com/codivex/codivex/internal/telemetry"
)

// Sentinel query values exist purely for testability: a caller can force
// a specific error path without needing an actually-broken backend.
const (
	SentinelIndexUnavailable = "__index_unavailable__"
	SentinelTimeout          = "__timeout__"
)

// Pipeline is the subset of QueryPipeline RequestFront depends on.
type Pipeline interface {
	Query(ctx context.Context, scope, query string, topK int) (search.QueryResult, error)
}

// SearchCodeRequest is one searchCode invocation's parameters.
type SearchCodeRequest struct {
	Query      string
	TopK       int
	RepoFilter string
	// HeaderScope is the scope carried by the transport (e.g. a request
	// header), consulted when RepoFilter is empty.
	HeaderScope string
}

// SearchCodeResponse is searchCode's result.
type SearchCodeResponse struct {
	Items []search.SearchResultItem
}

// OpenLocationRequest is one openLocation invocation's parameters.
type OpenLocationRequest struct {
	Path        string
	LineStart   int
	LineEnd     int
	RepoFilter  string
	HeaderScope string
}

// OpenLocationResponse echoes the validated, absolute-path location.
type OpenLocationResponse struct {
	Path      string
	LineStart int
	LineEnd   int
}

// RequestFront is the shell around QueryPipeline described in §4.11: scope
// resolution, cache lookup, sentinel handling, and latency recording.
type RequestFront struct {
	pipeline     Pipeline
	cache        *search.QueryCache
	projects     *store.ProjectStore
	projectRoots []string
	latencies    *LatencyRing
	metrics      *telemetry.QueryMetrics

	mu           sync.RWMutex
	shuttingDown bool
}

// SetMetrics wires a query telemetry collector; nil disables recording.
// Separate from New so tests and callers that don't care about telemetry
// aren't forced to thread a QueryMetrics through every construction.
func (f *RequestFront) SetMetrics(m *telemetry.QueryMetrics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = m
}

// New builds a RequestFront. projectRoots is the parsed
// CODIVEX_PROJECT_ROOTS list, consulted when a relative scope doesn't
// resolve against cwd.
func New(pipeline Pipeline, cache *search.QueryCache, projects *store.ProjectStore, projectRoots []string) *RequestFront {
	return &RequestFront{
		pipeline:     pipeline,
		cache:        cache,
		projects:     projects,
		projectRoots: projectRoots,
		latencies:    NewLatencyRing(DefaultLatencyCapacity),
	}
}

// ParseProjectRoots splits a CODIVEX_PROJECT_ROOTS value on the platform
// path-list separator (':' on Unix, ';' on Windows).
func ParseProjectRoots(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, string(os.PathListSeparator))
	roots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

// SetShuttingDown marks the front as shutting down; in-flight requests are not
// interrupted, but SetShuttingDown lets a caller (e.g. the supervisor,
// §5 "checks a shutting_down flag") gate new spawns.
func (f *RequestFront) SetShuttingDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shuttingDown = v
}

// ShuttingDown reports the current shutdown state.
func (f *RequestFront) ShuttingDown() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.shuttingDown
}

// Latencies exposes the p50/p95 telemetry ring.
func (f *RequestFront) Latencies() *LatencyRing { return f.latencies }

// SearchCode validates, resolves scope, consults the cache, and on a miss
// invokes the pipeline, per spec §4.11.
func (f *RequestFront) SearchCode(ctx context.Context, req SearchCodeRequest) (resp SearchCodeResponse, err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		f.latencies.Push(elapsed)
		if f.metrics != nil {
			f.metrics.Record(telemetry.QueryEvent{
				Query:       req.Query,
				QueryType:   telemetry.QueryTypeMixed,
				ResultCount: len(resp.Items),
				Latency:     elapsed,
				Timestamp:   start,
			})
		}
	}()

	if strings.TrimSpace(req.Query) == "" {
		return SearchCodeResponse{}, apperrors.NewKindError(apperrors.KindInvalidParams, "query must not be empty", nil)
	}

	switch req.Query {
	case SentinelIndexUnavailable:
		return SearchCodeResponse{}, apperrors.NewKindError(apperrors.KindIndexUnavailable, "index unavailable (sentinel)", nil)
	case SentinelTimeout:
		return SearchCodeResponse{}, apperrors.NewKindError(apperrors.KindTimeout, "timeout (sentinel)", nil)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	scope, err := f.resolveScope(req.RepoFilter, req.HeaderScope)
	if err != nil {
		return SearchCodeResponse{}, err
	}

	key := search.CacheKey(scope, req.Query, topK)
	if cached, ok := f.cache.Get(key); ok {
		return SearchCodeResponse{Items: cached.Items}, nil
	}

	result, err := f.pipeline.Query(ctx, scope, req.Query, topK)
	if err != nil {
		return SearchCodeResponse{}, err
	}
	if len(result.Items) == 0 {
		return SearchCodeResponse{}, apperrors.NewKindError(apperrors.KindIndexUnavailable, "no results for scope "+scope, nil)
	}

	f.cache.Put(key, result)
	return SearchCodeResponse{Items: result.Items}, nil
}

// OpenLocation validates a file/line-range request and echoes it back with
// an absolute path, per spec §6.1.
func (f *RequestFront) OpenLocation(_ context.Context, req OpenLocationRequest) (OpenLocationResponse, error) {
	if strings.TrimSpace(req.Path) == "" {
		return OpenLocationResponse{}, apperrors.NewKindError(apperrors.KindInvalidParams, "path must not be empty", nil)
	}
	if req.LineStart < 1 || req.LineEnd < req.LineStart {
		return OpenLocationResponse{}, apperrors.NewKindError(apperrors.KindInvalidParams, "line_start must be >= 1 and <= line_end", nil)
	}

	absPath := req.Path
	if !filepath.IsAbs(absPath) {
		scope, err := f.resolveScope(req.RepoFilter, req.HeaderScope)
		if err != nil {
			return OpenLocationResponse{}, err
		}
		absPath = filepath.Join(scope, req.Path)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return OpenLocationResponse{}, apperrors.NewKindError(apperrors.KindInvalidParams, "cannot read "+absPath, err)
	}
	lineCount := strings.Count(string(data), "\n") + 1
	if req.LineEnd > lineCount {
		return OpenLocationResponse{}, apperrors.NewKindError(apperrors.KindInvalidParams, "line_end exceeds file length", nil)
	}

	return OpenLocationResponse{Path: absPath, LineStart: req.LineStart, LineEnd: req.LineEnd}, nil
}

// resolveScope implements §4.11's resolution order: explicit repo_filter
// > request header > currently-selected project. Relative scopes resolve
// against cwd first, then each CODIVEX_PROJECT_ROOTS entry in order.
func (f *RequestFront) resolveScope(repoFilter, headerScope string) (string, error) {
	scope := repoFilter
	if scope == "" {
		scope = headerScope
	}
	if scope == "" {
		selected, err := f.projects.Selected()
		if err != nil {
			return "", apperrors.NewKindError(apperrors.KindInternal, "reading selected project", err)
		}
		scope = selected
	}
	if scope == "" {
		return "", apperrors.NewKindError(apperrors.KindInvalidParams, "no repo_filter, header scope, or selected project", nil)
	}

	if filepath.IsAbs(scope) {
		return scope, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, scope)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	for _, root := range f.projectRoots {
		candidate := filepath.Join(root, scope)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	// No filesystem match: return the joined cwd-relative path so a
	// caller testing against an in-memory/temp project store (which
	// never has a real directory to Stat) still resolves deterministically.
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, scope), nil
	}
	return scope, nil
}
