// Package search implements hybrid lexical+semantic retrieval: the
// QueryPipeline, reciprocal-rank fusion, and the query result cache.
package search

import (
	"math"
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60,
// matching Azure AI Search / OpenSearch defaults).
const DefaultRRFConstant = 60

// DefaultLexicalWeight and DefaultSemanticWeight are the fusion weights
// applied to the lexical and semantic ranked lists respectively.
const (
	DefaultLexicalWeight  = 1.0
	DefaultSemanticWeight = 0.7
)

// Weights holds the per-source fusion weights.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights returns w_lex=1.0, w_vec=0.7.
func DefaultWeights() Weights {
	return Weights{Lexical: DefaultLexicalWeight, Semantic: DefaultSemanticWeight}
}

// FusedResult is one id's fused score, ready to sort and consume.
type FusedResult struct {
	ID    string
	Score float64
}

// RRFFusion fuses two ranked id lists by reciprocal rank.
type RRFFusion struct {
	K int
}

// NewRRFFusion builds a fuser with the default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK builds a fuser with a custom k; k<=0 falls back to
// the default.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines two ranked id lists (lexical, semantic) into a single
// list sorted by descending score. score(id) = Σ weight/(k+rank_1_based)
// over every list that contains id. Ties are broken using total float
// ordering with NaN treated as smallest, per the fusion contract; no
// further tie-break is required.
func (f *RRFFusion) Fuse(lexical, semantic []string, weights Weights) []FusedResult {
	scores := make(map[string]float64, len(lexical)+len(semantic))

	for rank, id := range lexical {
		scores[id] += weights.Lexical / float64(f.K+rank+1)
	}
	for rank, id := range semantic {
		scores[id] += weights.Semantic / float64(f.K+rank+1)
	}

	results := make([]FusedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, FusedResult{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return totalOrderGreater(results[i].Score, results[j].Score)
	})
	return results
}

// totalOrderGreater reports whether a should sort before b under total
// float ordering with NaN treated as the smallest possible value.
func totalOrderGreater(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	if aNaN && bNaN {
		return false
	}
	if aNaN {
		return false
	}
	if bNaN {
		return true
	}
	return a > b
}
