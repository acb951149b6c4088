package search

import "strings"

// RetrievalTier selects which stages of QueryPipeline run.
type RetrievalTier string

const (
	TierFast         RetrievalTier = "fast"
	TierHybrid       RetrievalTier = "hybrid"
	TierHybridRerank RetrievalTier = "hybrid_rerank"
)

// ParseRetrievalTier reads MCP_RETRIEVAL_TIER's value, defaulting to
// Hybrid for anything unrecognized.
func ParseRetrievalTier(s string) RetrievalTier {
	switch RetrievalTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFast:
		return TierFast
	case TierHybridRerank:
		return TierHybridRerank
	default:
		return TierHybrid
	}
}

// SearchResultItem is one entry of a QueryPipeline result.
type SearchResultItem struct {
	File      string `json:"file"`
	Function  string `json:"function"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	CodeBlock string `json:"code_block"`
}

// QueryResult is what QueryPipeline.Query and the QueryCache exchange.
type QueryResult struct {
	Items []SearchResultItem `json:"items"`
}

// DefaultRerankTopN is used when MCP_RERANK_TOP_N is not configured.
const DefaultRerankTopN = 20

// Snippet trimming limits (§4.7 step 8).
const (
	maxSnippetLines = 120
	maxSnippetChars = 6000
	truncatedSuffix = "\n... (truncated)"
)
