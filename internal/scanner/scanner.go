package scanner

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codivex/codivex/internal/chunk"
	"github.com/codivex/codivex/internal/gitignore"
)

// gitignoreCacheSize bounds the number of parsed .gitignore matchers kept
// in memory, one per directory visited.
const gitignoreCacheSize = 1000

// Scanner walks a project root and reports files the language registry
// recognizes, in walker order.
type Scanner struct {
	registry    *chunk.LanguageRegistry
	maxFileSize int64

	cacheMu        sync.RWMutex
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
}

// New builds a Scanner against registry, capping individual files at
// maxFileSize bytes (<=0 uses DefaultMaxFileBytes).
func New(registry *chunk.LanguageRegistry, maxFileSize int64) (*Scanner, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileBytes
	}
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("scanner: create gitignore cache: %w", err)
	}
	return &Scanner{registry: registry, maxFileSize: maxFileSize, gitignoreCache: cache}, nil
}

// Scan walks rootDir and returns every accepted file, in walker order.
func (s *Scanner) Scan(rootDir string) ([]FoundFile, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root is not a directory: %s", absRoot)
	}

	var found []FoundFile
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		slashPath := "/" + filepath.ToSlash(relPath)

		if d.IsDir() {
			if containsAny(slashPath+"/", ignoreSubstrings) {
				return filepath.SkipDir
			}
			if s.isGitignored(relPath, absRoot, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if containsAny(slashPath, ignoreSubstrings) {
			return nil
		}

		ext := extOf(relPath)
		config, ok := s.registry.GetByExtension(ext)
		if !ok {
			return nil
		}

		if s.isGitignored(relPath, absRoot, false) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		if fileInfo.Size() > s.maxFileSize {
			return nil
		}

		if s.looksBinary(path) {
			return nil
		}

		found = append(found, FoundFile{
			Path:     filepath.ToSlash(relPath),
			AbsPath:  path,
			Size:     fileInfo.Size(),
			Language: config.Name,
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scanner: walk: %w", walkErr)
	}
	return found, nil
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func extOf(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}

// looksBinary applies the NUL-byte-in-first-512-bytes heuristic.
func (s *Scanner) looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

func (s *Scanner) isGitignored(relPath, absRoot string, isDir bool) bool {
	rootMatcher := s.getGitignoreMatcher(absRoot, "")
	if rootMatcher != nil && rootMatcher.Match(relPath, isDir) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	parts := strings.Split(dir, string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}
		matcher := s.getGitignoreMatcher(currentDir, currentBase)
		if matcher != nil && matcher.Match(relPath, isDir) {
			return true
		}
	}
	return false
}

func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil
	}

	matcher = gitignore.New()
	if err := matcher.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()

	return matcher
}
