package chunk

import (
	"bytes"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	haskell "github.com/tree-sitter/tree-sitter-haskell/bindings/go"

	"github.com/codivex/codivex/internal/fingerprint"
)

// HaskellChunker implements Chunker for .hs files. Haskell is the one
// language in the registry without a smacker/go-tree-sitter grammar, so
// it's parsed through the newer tree-sitter/go-tree-sitter binding
// instead, and kept in its own file rather than forced through
// SyntaxExtractor's older API.
type HaskellChunker struct {
	config *LanguageConfig
	policy DescendPolicy
}

// NewHaskellChunker builds a chunker for the given descend policy,
// looking up Haskell's candidate-kind config from registry.
func NewHaskellChunker(registry *LanguageRegistry, policy DescendPolicy) (*HaskellChunker, error) {
	config, ok := registry.GetByName(haskellName)
	if !ok {
		return nil, fmt.Errorf("chunk: haskell language not registered")
	}
	return &HaskellChunker{config: config, policy: policy}, nil
}

func (h *HaskellChunker) Extract(file FileInput) ([]CodeChunk, error) {
	lang := sitter.NewLanguage(haskell.Language())
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree := parser.Parse(file.Content, nil)
	if tree == nil {
		return nil, fmt.Errorf("chunk: failed to parse haskell file %s", file.Path)
	}
	defer tree.Close()

	candidates := make(map[string]bool, len(h.config.CandidateKinds))
	for _, k := range h.config.CandidateKinds {
		candidates[k] = true
	}

	var chunks []CodeChunk
	h.walk(tree.RootNode(), file, candidates, &chunks)

	if len(chunks) == 0 {
		chunks = append(chunks, h.fileChunk(file))
	}
	return chunks, nil
}

func (h *HaskellChunker) walk(node *sitter.Node, file FileInput, candidates map[string]bool, out *[]CodeChunk) {
	if node == nil {
		return
	}
	matched := candidates[node.Kind()]
	if matched {
		*out = append(*out, h.toChunk(node, file))
	}
	if matched && h.policy == SkipChildrenOfMatch {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		h.walk(node.Child(uint(i)), file, candidates, out)
	}
}

func (h *HaskellChunker) toChunk(node *sitter.Node, file FileInput) CodeChunk {
	startByte := int(node.StartByte())
	endByte := int(node.EndByte())

	extendedStart := extendOverLeadingComments(file.Content, startByte)
	content := string(file.Content[extendedStart:endByte])

	symbol := ""
	if nameNode := node.ChildByFieldName(h.config.NameField); nameNode != nil {
		symbol = string(file.Content[nameNode.StartByte():nameNode.EndByte()])
	}

	return CodeChunk{
		ID:          BuildID(file.Path, uint32(node.StartPosition().Row), uint32(node.EndPosition().Row)),
		Fingerprint: fingerprint.Of(content),
		FilePath:    file.Path,
		Language:    haskellName,
		Symbol:      symbol,
		StartLine:   int(node.StartPosition().Row) + 1,
		EndLine:     int(node.EndPosition().Row) + 1,
		StartChar:   extendedStart,
		EndChar:     endByte,
		Content:     content,
	}
}

func (h *HaskellChunker) fileChunk(file FileInput) CodeChunk {
	content := string(file.Content)
	lineCount := bytes.Count(file.Content, []byte("\n"))
	return CodeChunk{
		ID:          BuildID(file.Path, 0, uint32(lineCount)),
		Fingerprint: fingerprint.Of(content),
		FilePath:    file.Path,
		Language:    haskellName,
		StartLine:   1,
		EndLine:     lineCount + 1,
		StartChar:   0,
		EndChar:     len(file.Content),
		Content:     content,
	}
}
