package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEditByteEqualSourcesSkip(t *testing.T) {
	src := []byte("package main\nfunc a() {}\n")
	_, ok := ComputeEdit(src, src)
	assert.False(t, ok)
}

func TestComputeEditFindsMinimalSpan(t *testing.T) {
	old := []byte("func add(a, b int) int {\n\treturn a + b\n}\n")
	updated := []byte("func add(a, b int) int {\n\treturn a - b\n}\n")

	edit, ok := ComputeEdit(old, updated)
	require.True(t, ok)

	// Only the '+' -> '-' byte differs.
	assert.Equal(t, edit.OldEndByte, edit.StartByte+1)
	assert.Equal(t, edit.NewEndByte, edit.StartByte+1)
	assert.Equal(t, old[:edit.StartByte], updated[:edit.StartByte])
}

func TestComputeEditPointTranslation(t *testing.T) {
	old := []byte("line one\nline two\nline three\n")
	updated := []byte("line one\nline TWO\nline three\n")

	edit, ok := ComputeEdit(old, updated)
	require.True(t, ok)
	assert.Equal(t, uint32(1), edit.StartPoint.Row)
}
