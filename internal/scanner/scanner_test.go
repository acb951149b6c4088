package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codivex/codivex/internal/chunk"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanAcceptsRegisteredExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "not code\n")

	s, err := New(chunk.DefaultRegistry(), 0)
	require.NoError(t, err)

	files, err := s.Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
	assert.Equal(t, "go", files[0].Language)
}

func TestScanSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "module.exports = {}\n")
	writeFile(t, filepath.Join(root, "src", "app.js"), "console.log(1)\n")

	s, err := New(chunk.DefaultRegistry(), 0)
	require.NoError(t, err)

	files, err := s.Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/app.js", files[0].Path)
}

func TestScanRejectsOversizeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.go"), "package main\n")

	s, err := New(chunk.DefaultRegistry(), 4)
	require.NoError(t, err)

	files, err := s.Scan(root)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanRejectsBinaryFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "blob.go")
	require.NoError(t, os.WriteFile(path, []byte("package\x00main"), 0644))

	s, err := New(chunk.DefaultRegistry(), 0)
	require.NoError(t, err)

	files, err := s.Scan(root)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored.go\n")
	writeFile(t, filepath.Join(root, "ignored.go"), "package main\n")
	writeFile(t, filepath.Join(root, "kept.go"), "package main\n")

	s, err := New(chunk.DefaultRegistry(), 0)
	require.NoError(t, err)

	files, err := s.Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "kept.go", files[0].Path)
}
