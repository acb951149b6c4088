package chunk

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codivex/codivex/internal/fingerprint"
)

// SyntaxExtractor implements Chunker for every language whose grammar is
// registered in a LanguageRegistry (everything except Haskell; see
// HaskellChunker). It parses the full source, walks the tree in document
// order, and emits a chunk for every node whose kind is in the language's
// candidate set.
type SyntaxExtractor struct {
	registry *LanguageRegistry
	policy   DescendPolicy
}

// NewSyntaxExtractor builds an extractor over the given registry with the
// given descend policy. DescendAll is the default used by the production
// pipeline.
func NewSyntaxExtractor(registry *LanguageRegistry, policy DescendPolicy) *SyntaxExtractor {
	return &SyntaxExtractor{registry: registry, policy: policy}
}

// Extract implements Chunker.
func (e *SyntaxExtractor) Extract(file FileInput) ([]CodeChunk, error) {
	ext := extOf(file.Path)
	config, ok := e.registry.GetByExtension(ext)
	if !ok {
		return nil, fmt.Errorf("chunk: unrecognized extension %q for %s", ext, file.Path)
	}
	lang, ok := e.registry.GetTreeSitterLanguage(config.Name)
	if !ok {
		return nil, fmt.Errorf("chunk: no tree-sitter grammar registered for %q", config.Name)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, file.Content)
	if err != nil {
		return nil, fmt.Errorf("chunk: parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	candidates := make(map[string]bool, len(config.CandidateKinds))
	for _, k := range config.CandidateKinds {
		candidates[k] = true
	}

	var chunks []CodeChunk
	e.walk(tree.RootNode(), file, config, candidates, &chunks)

	if len(chunks) == 0 {
		chunks = append(chunks, e.fileChunk(file, config))
	}
	return chunks, nil
}

func (e *SyntaxExtractor) walk(node *sitter.Node, file FileInput, config *LanguageConfig, candidates map[string]bool, out *[]CodeChunk) {
	if node == nil {
		return
	}
	matched := candidates[node.Type()]
	if matched {
		*out = append(*out, e.toChunk(node, file, config))
	}
	if matched && e.policy == SkipChildrenOfMatch {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		e.walk(node.Child(i), file, config, candidates, out)
	}
}

func (e *SyntaxExtractor) toChunk(node *sitter.Node, file FileInput, config *LanguageConfig) CodeChunk {
	startByte := int(node.StartByte())
	endByte := int(node.EndByte())

	extendedStart := extendOverLeadingComments(file.Content, startByte)
	content := string(file.Content[extendedStart:endByte])

	symbol := ""
	if nameNode := node.ChildByFieldName(config.NameField); nameNode != nil {
		symbol = string(file.Content[nameNode.StartByte():nameNode.EndByte()])
	}

	id := BuildID(file.Path, node.StartPoint().Row, node.EndPoint().Row)
	return CodeChunk{
		ID:          id,
		Fingerprint: fingerprint.Of(content),
		FilePath:    file.Path,
		Language:    config.Name,
		Symbol:      symbol,
		StartLine:   int(node.StartPoint().Row) + 1,
		EndLine:     int(node.EndPoint().Row) + 1,
		StartChar:   extendedStart,
		EndChar:     endByte,
		Content:     content,
	}
}

func (e *SyntaxExtractor) fileChunk(file FileInput, config *LanguageConfig) CodeChunk {
	content := string(file.Content)
	lineCount := bytes.Count(file.Content, []byte("\n"))
	return CodeChunk{
		ID:          BuildID(file.Path, 0, uint32(lineCount)),
		Fingerprint: fingerprint.Of(content),
		FilePath:    file.Path,
		Language:    config.Name,
		Symbol:      "",
		StartLine:   1,
		EndLine:     lineCount + 1,
		StartChar:   0,
		EndChar:     len(file.Content),
		Content:     content,
	}
}

// extendOverLeadingComments walks backward from startByte line by line;
// while a line is blank or starts with "//" or "///" (after trimming
// leading spaces/tabs), it's folded into the chunk. The first
// non-matching line stops the walk. Only start_char and content reflect
// this extension — start_line stays at the syntax node's own row.
func extendOverLeadingComments(source []byte, startByte int) int {
	lineStart := func(pos int) int {
		for i := pos - 1; i >= 0; i-- {
			if source[i] == '\n' {
				return i + 1
			}
		}
		return 0
	}

	cursor := startByte
	for {
		ls := lineStart(cursor)
		if ls == cursor {
			// cursor is already at a line start; look at the line before it.
			if ls == 0 {
				break
			}
			prevLineEnd := ls - 1 // the '\n' itself
			ls = lineStart(prevLineEnd)
			line := bytes.TrimLeft(source[ls:prevLineEnd], " \t")
			if isBlankOrLineComment(line) {
				cursor = ls
				continue
			}
			break
		}
		line := bytes.TrimLeft(source[ls:cursor], " \t")
		if isBlankOrLineComment(line) {
			cursor = ls
			continue
		}
		break
	}
	return cursor
}

func isBlankOrLineComment(line []byte) bool {
	trimmed := bytes.TrimRight(line, " \t\r")
	if len(trimmed) == 0 {
		return true
	}
	return bytes.HasPrefix(trimmed, []byte("///")) || bytes.HasPrefix(trimmed, []byte("//"))
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}
