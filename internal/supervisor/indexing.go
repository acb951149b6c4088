package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codivex/codivex/internal/async"
	"github.com/codivex/codivex/internal/chunk"
	"github.com/codivex/codivex/internal/gitignore"
	"github.com/codivex/codivex/internal/store"
	"github.com/codivex/codivex/internal/watcher"
)

// extractionParallelism bounds how many files fullIndex/applyIncrementalUpdate
// read and chunk concurrently, so a large project's initial index doesn't
// spawn one goroutine per file.
const extractionParallelism = 8

// fullIndex scans projectPath from scratch, extracts chunks from every
// accepted file, and persists the snapshot plus both indexes. Used for
// a project's first adoption.
func (s *IndexingSupervisor) fullIndex(ctx context.Context, projectPath string) (int, error) {
	progress := async.NewIndexProgress()

	found, err := s.scanner.Scan(projectPath)
	if err != nil {
		progress.SetError(err.Error())
		return 0, fmt.Errorf("supervisor: scan %s: %w", projectPath, err)
	}
	progress.SetStage(async.StageScanning, len(found))

	progress.SetStage(async.StageChunking, len(found))
	perFile := make([][]chunk.CodeChunk, len(found))
	var processed int64
	var mu sync.Mutex
	pool := async.NewWorkerPool(extractionParallelism)
	_ = pool.Run(ctx, len(found), func(_ context.Context, i int) error {
		f := found[i]
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return nil
		}
		extracted, err := s.chunker.Extract(chunk.FileInput{Path: f.Path, Content: content})
		if err != nil {
			return nil
		}
		perFile[i] = extracted

		mu.Lock()
		processed++
		progress.UpdateFiles(int(processed))
		mu.Unlock()
		return nil
	})

	var chunks []chunk.CodeChunk
	for _, cs := range perFile {
		chunks = append(chunks, cs...)
	}

	indexed := make([]store.IndexedChunk, len(chunks))
	for i, c := range chunks {
		indexed[i] = toIndexedChunk(c)
	}

	if err := s.projects.SaveProjectIndex(&store.IndexedProject{
		ProjectPath:     projectPath,
		FilesScanned:    len(found),
		ChunksExtracted: len(indexed),
		IndexedAtUnix:   time.Now().Unix(),
		Chunks:          indexed,
	}); err != nil {
		progress.SetError(err.Error())
		return 0, fmt.Errorf("supervisor: save project snapshot: %w", err)
	}

	progress.SetStage(async.StageIndexing, len(indexed))
	if err := s.rebuildLexical(ctx, projectPath, indexed); err != nil {
		progress.SetError(err.Error())
		return 0, err
	}
	progress.UpdateChunks(len(indexed))

	if s.vectors != nil && s.embedder != nil {
		progress.SetStage(async.StageEmbedding, len(indexed))
		if err := s.rebuildVectors(ctx, projectPath, indexed); err != nil {
			// Embedding failures degrade to lexical-only, matching the
			// query path's downgrade-on-failure policy; not fatal.
			progress.SetError(err.Error())
		}
	}

	progress.SetReady()
	return len(indexed), nil
}

// applyIncrementalUpdate implements the retain-then-reextract-then-
// persist-then-rebuild-lexical-then-cross-update-vector sequence: chunks
// belonging to untouched files are retained as-is, chunks for
// touched/deleted files are dropped, and touched files are re-extracted
// and appended.
func (s *IndexingSupervisor) applyIncrementalUpdate(ctx context.Context, projectPath string, events []watcher.FileEvent) (int, error) {
	touched := make(map[string]bool, len(events))
	deleted := make(map[string]bool, len(events))
	rootGitignoreChanged := false
	for _, ev := range events {
		path := sameFile(ev.Path)
		switch ev.Operation {
		case watcher.OpDelete:
			deleted[path] = true
		case watcher.OpGitignoreChange:
			touched[path] = true
			if path == ".gitignore" {
				rootGitignoreChanged = true
			}
		default:
			touched[path] = true
		}
		if ev.OldPath != "" {
			deleted[sameFile(ev.OldPath)] = true
		}
	}

	snapshot, err := s.projects.LoadProjectIndex(projectPath)
	if err != nil {
		return 0, fmt.Errorf("supervisor: load snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = &store.IndexedProject{ProjectPath: projectPath}
	}

	if rootGitignoreChanged {
		for _, path := range s.reconcileRootGitignore(projectPath, snapshot.Chunks) {
			deleted[path] = true
		}
	}

	retained := snapshot.Chunks[:0]
	removedIDs := make([]string, 0, len(events))
	for _, c := range snapshot.Chunks {
		if touched[c.File] || deleted[c.File] {
			removedIDs = append(removedIDs, c.ID)
			continue
		}
		retained = append(retained, c)
	}

	toExtract := make([]string, 0, len(touched))
	for path := range touched {
		if !deleted[path] {
			toExtract = append(toExtract, path)
		}
	}

	perFile := make([][]chunk.CodeChunk, len(toExtract))
	pool := async.NewWorkerPool(extractionParallelism)
	_ = pool.Run(ctx, len(toExtract), func(_ context.Context, i int) error {
		path := toExtract[i]
		absPath := filepath.Join(projectPath, path)
		content, err := os.ReadFile(absPath)
		if err != nil {
			// File vanished between event and read; treat as deletion.
			return nil
		}
		extracted, err := s.chunker.Extract(chunk.FileInput{Path: path, Content: content})
		if err != nil {
			return nil
		}
		perFile[i] = extracted
		return nil
	})

	var fresh []chunk.CodeChunk
	for _, cs := range perFile {
		fresh = append(fresh, cs...)
	}

	freshIndexed := make([]store.IndexedChunk, len(fresh))
	for i, c := range fresh {
		freshIndexed[i] = toIndexedChunk(c)
	}

	merged := append(append([]store.IndexedChunk{}, retained...), freshIndexed...)

	filesSeen := make(map[string]bool, len(merged))
	for _, c := range merged {
		filesSeen[c.File] = true
	}

	if err := s.projects.SaveProjectIndex(&store.IndexedProject{
		ProjectPath:     projectPath,
		FilesScanned:    len(filesSeen),
		ChunksExtracted: len(merged),
		IndexedAtUnix:   time.Now().Unix(),
		Chunks:          merged,
	}); err != nil {
		return 0, fmt.Errorf("supervisor: persist incremental snapshot: %w", err)
	}

	if err := s.updateLexical(ctx, projectPath, removedIDs, freshIndexed); err != nil {
		return 0, err
	}

	if s.vectors != nil && s.embedder != nil {
		if err := s.updateVectors(ctx, projectPath, removedIDs, freshIndexed); err != nil {
			return len(merged), nil // embedding failures degrade silently, same as query path
		}
	}

	return len(merged), nil
}

// sameFile normalizes a watcher-reported path for comparison against
// IndexedChunk.File, which the scanner always stores slash-separated
// and relative.
func sameFile(path string) string {
	return filepath.ToSlash(path)
}

// reconcileRootGitignore diffs the root .gitignore's current content
// against the content last seen for projectPath and returns the indexed
// files that newly match an added pattern, so the caller can drop them
// from the snapshot without a full rescan. Patterns removed from
// .gitignore are not reconciled here: a file they newly unignore is
// only picked up by a future full index, since nothing currently
// indexed was ever excluded for matching them.
func (s *IndexingSupervisor) reconcileRootGitignore(projectPath string, chunks []store.IndexedChunk) []string {
	newContent, err := os.ReadFile(filepath.Join(projectPath, ".gitignore"))
	if err != nil {
		return nil
	}

	s.gitignoreMu.Lock()
	oldContent := s.gitignoreContent[projectPath]
	s.gitignoreContent[projectPath] = string(newContent)
	s.gitignoreMu.Unlock()

	added, _ := gitignore.DiffPatterns(oldContent, string(newContent))
	if len(added) == 0 {
		return nil
	}

	var matched []string
	for _, c := range chunks {
		if gitignore.MatchesAnyPattern(c.File, added) {
			matched = append(matched, c.File)
		}
	}
	return matched
}

func toIndexedChunk(c chunk.CodeChunk) store.IndexedChunk {
	return store.IndexedChunk{
		ID:        c.ID,
		File:      c.FilePath,
		Symbol:    c.Symbol,
		Language:  c.Language,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Content:   c.Content,
	}
}
