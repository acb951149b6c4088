// Package chunk extracts syntax-aware code chunks from source files using
// tree-sitter, across the fourteen languages codivex understands.
package chunk

import "fmt"

// CodeChunk is one syntax-aware unit of source: a function, method, class,
// or similar top-level construct, or (when a file matches no candidate
// node kind) the whole file.
type CodeChunk struct {
	ID          string
	Fingerprint string
	FilePath    string
	Language    string
	Symbol      string
	StartLine   int // 1-based, inclusive
	EndLine     int // 1-based, inclusive
	StartChar   int
	EndChar     int
	Content     string
}

// BuildID returns the canonical chunk id: path plus 0-based start/end
// rows. This is the id used everywhere a chunk is referenced — the
// lexical index, the vector store payload, and search results.
func BuildID(path string, startRow, endRow uint32) string {
	return fmt.Sprintf("%s:%d:%d", path, startRow, endRow)
}

// StableKey identifies a chunk across re-extractions for deletion-matching
// on reload, where line numbers may have shifted but the symbol and its
// approximate span have not.
func StableKey(path string, startLine, endLine int, symbol string) string {
	return fmt.Sprintf("%s:%d:%d:%s", path, startLine, endLine, symbol)
}

// FileInput is one file handed to a Chunker.
type FileInput struct {
	Path    string
	Content []byte
}

// DescendPolicy controls whether the extractor keeps walking into the
// children of a node that already matched a candidate kind.
//
// DescendAll preserves double emission (e.g. a method chunk nested inside
// its enclosing class chunk) and is the default. SkipChildrenOfMatch
// emits only the outermost match in a matching subtree.
type DescendPolicy int

const (
	DescendAll DescendPolicy = iota
	SkipChildrenOfMatch
)

// LanguageConfig describes how to find chunk boundaries in one language's
// syntax tree: the node kinds worth emitting as chunks, and the field name
// that holds a matched node's identifier.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	CandidateKinds []string
	NameField      string
}

// Chunker splits one file into chunks.
type Chunker interface {
	Extract(file FileInput) ([]CodeChunk, error)
}
