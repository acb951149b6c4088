package chunk

import "fmt"

// MultiChunker is the Chunker the rest of codivex depends on: it dispatches
// by extension to SyntaxExtractor for the thirteen smacker-backed
// languages and to HaskellChunker for .hs files.
type MultiChunker struct {
	registry *LanguageRegistry
	syntax   *SyntaxExtractor
	haskell  *HaskellChunker
}

// NewMultiChunker wires both chunkers against the same registry so their
// candidate-kind tables stay in sync.
func NewMultiChunker(registry *LanguageRegistry, policy DescendPolicy) (*MultiChunker, error) {
	hs, err := NewHaskellChunker(registry, policy)
	if err != nil {
		return nil, err
	}
	return &MultiChunker{
		registry: registry,
		syntax:   NewSyntaxExtractor(registry, policy),
		haskell:  hs,
	}, nil
}

// Extract implements Chunker.
func (m *MultiChunker) Extract(file FileInput) ([]CodeChunk, error) {
	config, ok := m.registry.GetByExtension(extOf(file.Path))
	if !ok {
		return nil, fmt.Errorf("chunk: unrecognized extension for %s", file.Path)
	}
	if config.Name == haskellName {
		return m.haskell.Extract(file)
	}
	return m.syntax.Extract(file)
}
