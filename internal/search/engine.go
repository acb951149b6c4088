package search

import (
	"context"
	"math"
	"sort"
	"strings"

	apperrors "github.com/codivex/codivex/internal/errors"
	"github.com/codivex/codivex/internal/store"
)

// defaultLexicalFactor and defaultMinLexicalTopK compute
// lexical_top_k = max(20, top_k * 4), §4.7 step 4.
const (
	defaultMinLexicalTopK = 20
	defaultLexicalFactor  = 4
)

// QueryPipeline implements the nine-step retrieval algorithm: load the
// project snapshot, take the exact-symbol shortcut, retrieve lexically and
// (depending on tier) semantically, fuse with RRF, compose a deduplicated
// result list, trim snippets, and optionally rerank the head.
type QueryPipeline struct {
	projects *store.ProjectStore
	vectors  store.VectorStore
	embedder Embedder
	reranker Reranker
	fusion   *RRFFusion
	weights  Weights
	tier     RetrievalTier

	// rerankTopN is MCP_RERANK_TOP_N; only consulted under TierHybridRerank.
	rerankTopN int
}

// Embedder is the subset of embed.Embedder the query pipeline depends on.
// Defined locally so this package never imports internal/embed directly;
// callers wire a concrete *embed.Session in.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewQueryPipeline builds a pipeline. embedder and vectors may be nil: a
// nil embedder degrades every tier to lexical-only; a nil vectors falls
// back to brute-force cosine over the project's chunks whenever an
// embedder is available.
func NewQueryPipeline(projects *store.ProjectStore, vectors store.VectorStore, embedder Embedder, reranker Reranker, tier RetrievalTier, rerankTopN int) *QueryPipeline {
	if reranker == nil {
		reranker = &NoOpReranker{}
	}
	if rerankTopN <= 0 {
		rerankTopN = DefaultRerankTopN
	}
	return &QueryPipeline{
		projects:   projects,
		vectors:    vectors,
		embedder:   embedder,
		reranker:   reranker,
		fusion:     NewRRFFusion(),
		weights:    DefaultWeights(),
		tier:       tier,
		rerankTopN: rerankTopN,
	}
}

// Query runs the full pipeline for one (scope, query, top_k) request.
// scope is a project path as stored by ProjectStore; it must already be
// indexed, or a KindError{Kind: NotIndexed} is returned.
func (p *QueryPipeline) Query(ctx context.Context, scope, query string, topK int) (QueryResult, error) {
	if topK <= 0 {
		topK = 1
	}

	// Step 1: load the project snapshot.
	project, err := p.projects.LoadProjectIndex(scope)
	if err != nil {
		return QueryResult{}, apperrors.NewKindError(apperrors.KindInternal, "loading project index", err)
	}
	if project == nil || len(project.Chunks) == 0 {
		return QueryResult{}, apperrors.NewKindError(apperrors.KindNotIndexed, "project is not indexed: "+scope, nil)
	}

	// Step 2: id -> chunk map, preserving first-seen order for ties.
	byID := make(map[string]store.IndexedChunk, len(project.Chunks))
	order := make([]string, 0, len(project.Chunks))
	for _, c := range project.Chunks {
		byID[c.ID] = c
		order = append(order, c.ID)
	}

	lexicalTopK := topK * defaultLexicalFactor
	if lexicalTopK < defaultMinLexicalTopK {
		lexicalTopK = defaultMinLexicalTopK
	}

	// Step 3: exact-symbol shortcut.
	var exactIDs []string
	trimmedQuery := strings.ToLower(strings.TrimSpace(query))
	if trimmedQuery != "" {
		for _, id := range order {
			if strings.ToLower(strings.TrimSpace(byID[id].Symbol)) == trimmedQuery {
				exactIDs = append(exactIDs, id)
			}
		}
	}

	// Step 4: lexical retrieval.
	lexicalIDs, err := p.searchLexical(ctx, scope, project.Chunks, query, lexicalTopK)
	if err != nil {
		return QueryResult{}, apperrors.NewKindError(apperrors.KindInternal, "lexical retrieval", err)
	}

	// Step 5: semantic retrieval, gated by tier.
	var semanticIDs []string
	if p.tier != TierFast && p.embedder != nil {
		semanticIDs, err = p.searchSemantic(ctx, scope, project.Chunks, query, lexicalTopK)
		if err != nil {
			// A degraded embedder/vector backend falls back to lexical-only
			// rather than failing the whole query.
			semanticIDs = nil
		}
	}

	// Step 6: reciprocal rank fusion.
	fused := p.fusion.Fuse(lexicalIDs, semanticIDs, p.weights)

	// Step 7: compose, exact matches first, deduped by first occurrence.
	seen := make(map[string]struct{}, len(exactIDs)+len(fused))
	var ranked []string
	for _, id := range exactIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ranked = append(ranked, id)
	}
	for _, r := range fused {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ranked = append(ranked, r.ID)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	items := make([]SearchResultItem, 0, len(ranked))
	for _, id := range ranked {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		function := chunk.Symbol
		if function == "" {
			function = "chunk"
		}
		items = append(items, SearchResultItem{
			File:      chunk.File,
			Function:  function,
			StartLine: chunk.StartLine,
			EndLine:   chunk.EndLine,
			CodeBlock: trimSnippet(chunk.Content),
		})
	}

	// Step 9: rerank the head under TierHybridRerank.
	if p.tier == TierHybridRerank && len(items) > 0 {
		items = p.rerank(ctx, query, items)
	}

	return QueryResult{Items: items}, nil
}

func (p *QueryPipeline) searchLexical(ctx context.Context, scope string, chunks []store.IndexedChunk, query string, topK int) ([]string, error) {
	idx, err := store.OpenOrCreate(p.projects.LexicalIndexDir(scope), store.DefaultBM25Config())
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	stats := idx.Stats()
	if stats.DocumentCount == 0 {
		for _, c := range chunks {
			if err := idx.AddChunk(ctx, store.Document{ID: c.ID, Path: c.File, Symbol: c.Symbol, Content: c.Content}); err != nil {
				return nil, err
			}
		}
		if err := idx.Commit(); err != nil {
			return nil, err
		}
	}
	return idx.SearchIDs(ctx, query, topK)
}

// searchSemantic embeds the query and either queries the configured
// vector store or, when none is configured, falls back to brute-force
// cosine similarity over every chunk in the snapshot.
func (p *QueryPipeline) searchSemantic(ctx context.Context, scope string, chunks []store.IndexedChunk, query string, topK int) ([]string, error) {
	qvec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if p.vectors != nil {
		results, err := p.vectors.Search(ctx, store.ProjectVectorCollection(scope), qvec, topK)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		return ids, nil
	}

	type scored struct {
		id    string
		score float64
	}
	scoredChunks := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c.Content)
		if err != nil {
			continue
		}
		scoredChunks = append(scoredChunks, scored{id: c.ID, score: cosineSimilarity(qvec, vec)})
	}
	sort.Slice(scoredChunks, func(i, j int) bool { return totalOrderGreater(scoredChunks[i].score, scoredChunks[j].score) })
	if len(scoredChunks) > topK {
		scoredChunks = scoredChunks[:topK]
	}
	ids := make([]string, len(scoredChunks))
	for i, s := range scoredChunks {
		ids[i] = s.id
	}
	return ids, nil
}

func (p *QueryPipeline) rerank(ctx context.Context, query string, items []SearchResultItem) []SearchResultItem {
	n := p.rerankTopN
	if n > len(items) {
		n = len(items)
	}
	head := items[:n]
	docs := make([]string, len(head))
	for i, it := range head {
		docs[i] = it.CodeBlock
	}
	reranked, err := p.reranker.Rerank(ctx, query, docs, n)
	if err != nil || len(reranked) == 0 {
		return items
	}
	out := make([]SearchResultItem, 0, len(items))
	for _, r := range reranked {
		if r.Index < 0 || r.Index >= len(head) {
			continue
		}
		out = append(out, head[r.Index])
	}
	out = append(out, items[n:]...)
	return out
}

func trimSnippet(content string) string {
	lines := strings.Split(content, "\n")
	truncated := false
	if len(lines) > maxSnippetLines {
		lines = lines[:maxSnippetLines]
		truncated = true
	}
	snippet := strings.Join(lines, "\n")
	if len(snippet) > maxSnippetChars {
		snippet = snippet[:maxSnippetChars]
		truncated = true
	}
	if truncated {
		snippet += truncatedSuffix
	}
	return snippet
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
