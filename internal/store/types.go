// Package store is the persistence layer: a lexical (BM25) index over chunk
// text, and a vector index over chunk embeddings. Both are capability-set
// interfaces so "no backend configured" is a distinct, explicit choice
// rather than a nullable client.
package store

import (
	"context"
	"fmt"
)

// Document is a unit of lexical indexing.
type Document struct {
	ID      string // chunk id, stored untokenized
	Path    string // file path, stored untokenized
	Symbol  string // symbol name, tokenized; empty string if absent
	Content string // chunk content, tokenized
}

// BM25Result is a single lexical search hit.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats describes a lexical index's size.
type IndexStats struct {
	DocumentCount int
}

// LexicalIndex is the persistent inverted index described in SPEC_FULL.md
// §4.4: fields id/path (stored, untokenized) and symbol/content (stored,
// tokenized). One writer per index directory; readers see the snapshot as
// of the last Commit.
type LexicalIndex interface {
	// AddChunk indexes one document's id/path/symbol/content fields.
	AddChunk(ctx context.Context, doc Document) error

	// Reset deletes all documents and commits. Idempotent.
	Reset(ctx context.Context) error

	// Delete removes documents by chunk id.
	Delete(ctx context.Context, ids []string) error

	// Commit flushes the writer and reloads the reader snapshot.
	Commit() error

	// SearchIDs parses query against [symbol, content, path] in that
	// order of significance and returns up to topK chunk ids, descending
	// by score.
	SearchIDs(ctx context.Context, query string, topK int) ([]string, error)

	// Search returns full scored hits (id/score/matched terms) for
	// callers that need ranking detail beyond bare ids (RRF fusion).
	Search(ctx context.Context, query string, topK int) ([]*BM25Result, error)

	AllIDs() ([]string, error)
	Stats() *IndexStats
	Close() error
}

// BM25Config tunes the lexical index's tokenizer and scoring.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns the defaults used when no override is set.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords are common programming keywords filtered from the
// lexical index's token stream.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// Distance is the vector similarity metric a collection is configured for.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceEuclidean Distance = "euclidean"
)

// Quantization mirrors the external vector store's storage precision
// modes; the local HNSW backend only meaningfully implements QuantNone,
// but the type is threaded through so an external collaborator's
// quantization choice round-trips.
type Quantization string

const (
	QuantNone  Quantization = "none"
	QuantInt8  Quantization = "int8"
	QuantUint8 Quantization = "uint8"
)

// VectorResult is a single semantic search hit.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorItem is one vector to upsert: a stable numeric id derived by
// hashing the chunk id (see HashChunkID), the embedding, and a payload of
// {path, chunk_id} used to recover the chunk id from a search hit.
type VectorItem struct {
	HashedID uint64
	ChunkID  string
	Path     string
	Vector   []float32
}

// VectorStoreConfig configures a single collection.
type VectorStoreConfig struct {
	Dimensions     int
	Quantization   Quantization
	Metric         string // "cos" | "l2"
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns the defaults spec.md §4.5 assumes.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   QuantNone,
		Metric:         "cos",
		M:              16,
		EfConstruction: 100,
		EfSearch:       20,
	}
}

// VectorStore is the capability set from SPEC_FULL.md §4.5: ensure a named
// collection exists, upsert/delete points in it, and run a k-NN search
// returning chunk ids. Implementations: the local coder/hnsw-backed store
// (no external endpoint configured) and the Qdrant client (QDRANT_URL
// set). QueryPipeline and IndexingSupervisor depend only on this
// interface — "no vector endpoint" is choosing the local implementation,
// never a nil VectorStore.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dim int, distance Distance, quant Quantization) error
	Upsert(ctx context.Context, collection string, items []VectorItem) error
	Delete(ctx context.Context, collection string, hashedIDs []uint64) error
	Search(ctx context.Context, collection string, query []float32, topK int) ([]VectorResult, error)
	Close() error
}

// ErrDimensionMismatch indicates a query or insert vector doesn't match
// the collection's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
