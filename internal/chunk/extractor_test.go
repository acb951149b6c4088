package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntaxExtractorGoFunctions(t *testing.T) {
	src := `package main

func add(a, b int) int {
	return a + b
}

func sub(a, b int) int {
	return a - b
}
`
	extractor := NewSyntaxExtractor(DefaultRegistry(), DescendAll)
	chunks, err := extractor.Extract(FileInput{Path: "math.go", Content: []byte(src)})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "add", chunks[0].Symbol)
	assert.Equal(t, "go", chunks[0].Language)
	assert.Equal(t, "math.go:2:4", chunks[0].ID)
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, "sub", chunks[1].Symbol)
}

func TestSyntaxExtractorLeadingCommentExtension(t *testing.T) {
	src := `package main

// add returns the sum of a and b.
// It does not check for overflow.
func add(a, b int) int {
	return a + b
}
`
	extractor := NewSyntaxExtractor(DefaultRegistry(), DescendAll)
	chunks, err := extractor.Extract(FileInput{Path: "math.go", Content: []byte(src)})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Contains(t, c.Content, "add returns the sum")
	// start_line must stay anchored to the syntax node's own row, not the
	// comment above it.
	assert.Equal(t, 5, c.StartLine)
}

func TestSyntaxExtractorFallsBackToFileChunk(t *testing.T) {
	src := `package main
`
	extractor := NewSyntaxExtractor(DefaultRegistry(), DescendAll)
	chunks, err := extractor.Extract(FileInput{Path: "empty.go", Content: []byte(src)})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestSyntaxExtractorUnrecognizedExtension(t *testing.T) {
	extractor := NewSyntaxExtractor(DefaultRegistry(), DescendAll)
	_, err := extractor.Extract(FileInput{Path: "notes.txt", Content: []byte("hello")})
	assert.Error(t, err)
}

func TestSyntaxExtractorPythonClassAndMethod(t *testing.T) {
	src := `class Greeter:
    def greet(self):
        return "hi"
`
	extractor := NewSyntaxExtractor(DefaultRegistry(), DescendAll)
	chunks, err := extractor.Extract(FileInput{Path: "greet.py", Content: []byte(src)})
	require.NoError(t, err)
	// class_definition and the nested function_definition both match
	// (DescendAll), so the method is double-emitted inside the class.
	require.GreaterOrEqual(t, len(chunks), 2)
}
