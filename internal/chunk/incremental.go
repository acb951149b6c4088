package chunk

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Point is a (row, column) source position, 0-indexed.
type Point struct {
	Row    uint32
	Column uint32
}

// Edit describes a byte-range replacement between an old and new source,
// in the shape tree-sitter's edit API expects.
type Edit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// ComputeEdit finds the longest common prefix and suffix of oldSource and
// newSource; the differing middle is the edit span. Returns ok=false when
// the sources are byte-equal (caller should skip the reparse).
func ComputeEdit(oldSource, newSource []byte) (Edit, bool) {
	if bytes.Equal(oldSource, newSource) {
		return Edit{}, false
	}

	prefix := commonPrefixLen(oldSource, newSource)

	oldRem := oldSource[prefix:]
	newRem := newSource[prefix:]
	suffix := commonSuffixLen(oldRem, newRem)
	// The suffix must not overlap the still-unmatched prefix region.
	if suffix > len(oldRem) {
		suffix = len(oldRem)
	}
	if suffix > len(newRem) {
		suffix = len(newRem)
	}

	oldEndByte := len(oldSource) - suffix
	newEndByte := len(newSource) - suffix

	return Edit{
		StartByte:   uint32(prefix),
		OldEndByte:  uint32(oldEndByte),
		NewEndByte:  uint32(newEndByte),
		StartPoint:  byteToPoint(oldSource, prefix),
		OldEndPoint: byteToPoint(oldSource, oldEndByte),
		NewEndPoint: byteToPoint(newSource, newEndByte),
	}, true
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

// byteToPoint translates a byte offset into a (row, column) by counting
// newlines up to that byte.
func byteToPoint(source []byte, offset int) Point {
	if offset > len(source) {
		offset = len(source)
	}
	row := uint32(0)
	lastNewline := -1
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			row++
			lastNewline = i
		}
	}
	return Point{Row: row, Column: uint32(offset - lastNewline - 1)}
}

// IncrementalReparser reuses an existing tree-sitter tree across an edit,
// avoiding a full reparse of unchanged regions.
type IncrementalReparser struct {
	registry *LanguageRegistry
}

// NewIncrementalReparser builds a reparser over the given registry.
func NewIncrementalReparser(registry *LanguageRegistry) *IncrementalReparser {
	return &IncrementalReparser{registry: registry}
}

// Reparse parses oldSource, applies edit to the resulting tree, then
// parses newSource using the edited tree as a base. Returns the new tree;
// callers must Close() it. Haskell is not supported (its grammar doesn't
// implement smacker's sitter.Tree.Edit); callers fall back to a full
// MultiChunker.Extract for .hs files.
func (r *IncrementalReparser) Reparse(path string, oldSource, newSource []byte, edit Edit) (*sitter.Tree, error) {
	config, ok := r.registry.GetByExtension(extOf(path))
	if !ok {
		return nil, fmt.Errorf("chunk: unrecognized extension for %s", path)
	}
	lang, ok := r.registry.GetTreeSitterLanguage(config.Name)
	if !ok {
		return nil, fmt.Errorf("chunk: no incremental support for language %q", config.Name)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	oldTree, err := parser.ParseCtx(context.Background(), nil, oldSource)
	if err != nil {
		return nil, fmt.Errorf("chunk: parse old source for %s: %w", path, err)
	}
	defer oldTree.Close()

	oldTree.Edit(sitter.EditInput{
		StartIndex:  edit.StartByte,
		OldEndIndex: edit.OldEndByte,
		NewEndIndex: edit.NewEndByte,
		StartPoint:  sitter.Point{Row: edit.StartPoint.Row, Column: edit.StartPoint.Column},
		OldEndPoint: sitter.Point{Row: edit.OldEndPoint.Row, Column: edit.OldEndPoint.Column},
		NewEndPoint: sitter.Point{Row: edit.NewEndPoint.Row, Column: edit.NewEndPoint.Column},
	})

	newTree, err := parser.ParseCtx(context.Background(), oldTree, newSource)
	if err != nil {
		return nil, fmt.Errorf("chunk: parse new source for %s: %w", path, err)
	}
	return newTree, nil
}
