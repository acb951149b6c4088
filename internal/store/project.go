package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// IndexedChunk is the reduced, authoritative on-disk form of a chunk:
// everything a query needs to render a SearchResultItem, nothing more.
type IndexedChunk struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Symbol    string `json:"symbol"`
	Language  string `json:"language"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// IndexedProject is one project's persisted snapshot.
type IndexedProject struct {
	ProjectPath     string         `json:"project_path"`
	FilesScanned    int            `json:"files_scanned"`
	ChunksExtracted int            `json:"chunks_extracted"`
	IndexedAtUnix   int64          `json:"indexed_at_unix"`
	Chunks          []IndexedChunk `json:"chunks"`
}

// ProjectCatalogEntry is one summary row in the catalog.
type ProjectCatalogEntry struct {
	ProjectPath     string `json:"project_path"`
	FilesScanned    int    `json:"files_scanned"`
	ChunksExtracted int    `json:"chunks_extracted"`
	IndexedAtUnix   int64  `json:"indexed_at_unix"`
}

// ProjectCatalog is the ordered list of known projects, sorted ascending
// by project_path.
type ProjectCatalog struct {
	Projects []ProjectCatalogEntry `json:"projects"`
}

// ProjectKey derives the stable storage key for a project path: the first
// 24 hex characters of SHA-256(project_path).
func ProjectKey(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return hex.EncodeToString(sum[:])[:24]
}

// ProjectVectorCollection is the vector-store collection name a project
// key maps to.
func ProjectVectorCollection(projectPath string) string {
	return "code_chunks_" + ProjectKey(projectPath)
}

// ProjectStore persists IndexedProject snapshots, the project catalog,
// and the selected-project pointer, all rooted at <cwd>/.codivex/ per the
// write-target guard enforced by assertWriteTarget. A single writer holds
// rootDir/.lock for the store's lifetime, so two codivex processes can
// never adopt the same state directory concurrently.
type ProjectStore struct {
	mu      sync.Mutex
	rootDir string // <cwd>/.codivex
	lock    *flock.Flock
}

// NewProjectStore roots all state under rootDir (normally
// filepath.Join(cwd, ".codivex")) and acquires the directory's single-writer
// lock. Returns an error immediately if another process already holds it.
func NewProjectStore(rootDir string) (*ProjectStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("project store: create root %s: %w", rootDir, err)
	}

	lock := flock.New(filepath.Join(rootDir, ".lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("project store: acquire lock on %s: %w", rootDir, err)
	}
	if !acquired {
		return nil, fmt.Errorf("project store: %s is already locked by another process", rootDir)
	}

	return &ProjectStore{rootDir: rootDir, lock: lock}, nil
}

// Close releases the state directory's single-writer lock.
func (s *ProjectStore) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

func (s *ProjectStore) selectedPath() string       { return filepath.Join(s.rootDir, "selected-project.txt") }
func (s *ProjectStore) catalogPath() string        { return filepath.Join(s.rootDir, "project-catalog.json") }
func (s *ProjectStore) indexesDir() string         { return filepath.Join(s.rootDir, "project-indexes") }
func (s *ProjectStore) indexPath(key string) string { return filepath.Join(s.indexesDir(), key+".json") }

// LexicalIndexDir returns the storage/<key>/tantivy/ directory for a
// project's lexical index.
func (s *ProjectStore) LexicalIndexDir(projectPath string) string {
	return filepath.Join(s.rootDir, "storage", ProjectKey(projectPath), "tantivy")
}

// StorageDir returns storage/<key>/, the subtree removed wholesale by
// RemoveProjectIndex.
func (s *ProjectStore) StorageDir(projectPath string) string {
	return filepath.Join(s.rootDir, "storage", ProjectKey(projectPath))
}

// assertWriteTarget is the hard assertion from SPEC_FULL.md §7: every
// ProjectStore write must land under rootDir, and never inside an
// absolute project path. Violations abort the write entirely rather than
// writing partial state.
func (s *ProjectStore) assertWriteTarget(target string, projectPath string) error {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("assert_state_write_target: cannot resolve %s: %w", target, err)
	}
	absRoot, err := filepath.Abs(s.rootDir)
	if err != nil {
		return fmt.Errorf("assert_state_write_target: cannot resolve root %s: %w", s.rootDir, err)
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("assert_state_write_target: %s is not under %s", absTarget, absRoot)
	}

	if projectPath != "" && filepath.IsAbs(projectPath) {
		absProject, err := filepath.Abs(projectPath)
		if err == nil {
			if relToProject, err := filepath.Rel(absProject, absTarget); err == nil && !strings.HasPrefix(relToProject, "..") {
				return fmt.Errorf("assert_state_write_target: %s falls under project path %s", absTarget, absProject)
			}
		}
	}
	return nil
}

func (s *ProjectStore) writeFileAtomic(target string, data []byte, projectPath string) error {
	if err := s.assertWriteTarget(target, projectPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("project store: create dir for %s: %w", target, err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("project store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("project store: rename %s: %w", tmp, err)
	}
	return nil
}

// Select sets the focused project pointer.
func (s *ProjectStore) Select(projectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFileAtomic(s.selectedPath(), []byte(projectPath), "")
}

// Selected returns the trimmed currently-selected project path, or "" if
// none is set.
func (s *ProjectStore) Selected() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.selectedPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("project store: read selected project: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveProjectIndex persists an IndexedProject snapshot and upserts its
// catalog entry in one call (§3: "a project is created by select +
// save_project_index").
func (s *ProjectStore) SaveProjectIndex(project *IndexedProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ProjectKey(project.ProjectPath)
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("project store: marshal snapshot: %w", err)
	}
	if err := s.writeFileAtomic(s.indexPath(key), data, project.ProjectPath); err != nil {
		return err
	}

	return s.upsertCatalogEntryLocked(ProjectCatalogEntry{
		ProjectPath:     project.ProjectPath,
		FilesScanned:    project.FilesScanned,
		ChunksExtracted: project.ChunksExtracted,
		IndexedAtUnix:   project.IndexedAtUnix,
	})
}

// LoadProjectIndex reads the snapshot for projectPath. Returns
// (nil, nil) if no snapshot has been saved yet.
func (s *ProjectStore) LoadProjectIndex(projectPath string) (*IndexedProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ProjectKey(projectPath)
	data, err := os.ReadFile(s.indexPath(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project store: read snapshot: %w", err)
	}

	var project IndexedProject
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("project store: decode snapshot: %w", err)
	}
	return &project, nil
}

// RemoveProjectIndex tears down a project's snapshot and its entire
// storage/<key>/ subtree, and drops its catalog entry.
func (s *ProjectStore) RemoveProjectIndex(projectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ProjectKey(projectPath)

	if err := s.assertWriteTarget(s.indexPath(key), projectPath); err != nil {
		return err
	}
	if err := os.Remove(s.indexPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("project store: remove snapshot: %w", err)
	}

	storageDir := s.StorageDir(projectPath)
	if err := s.assertWriteTarget(storageDir, projectPath); err != nil {
		return err
	}
	if err := os.RemoveAll(storageDir); err != nil {
		return fmt.Errorf("project store: remove storage dir: %w", err)
	}

	return s.removeCatalogEntryLocked(projectPath)
}

// ReadCatalog loads the catalog, or an empty one if none exists yet.
func (s *ProjectStore) ReadCatalog() (*ProjectCatalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCatalogLocked()
}

func (s *ProjectStore) readCatalogLocked() (*ProjectCatalog, error) {
	data, err := os.ReadFile(s.catalogPath())
	if os.IsNotExist(err) {
		return &ProjectCatalog{Projects: []ProjectCatalogEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project store: read catalog: %w", err)
	}
	var catalog ProjectCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("project store: decode catalog: %w", err)
	}
	return &catalog, nil
}

// UpsertCatalogEntry inserts or replaces entry by ProjectPath, then
// re-sorts and saves. Exposed directly for callers (e.g. the supervisor)
// that need to update catalog counters without re-saving a full snapshot.
func (s *ProjectStore) UpsertCatalogEntry(entry ProjectCatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCatalogEntryLocked(entry)
}

func (s *ProjectStore) upsertCatalogEntryLocked(entry ProjectCatalogEntry) error {
	catalog, err := s.readCatalogLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range catalog.Projects {
		if existing.ProjectPath == entry.ProjectPath {
			catalog.Projects[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		catalog.Projects = append(catalog.Projects, entry)
	}
	sort.Slice(catalog.Projects, func(i, j int) bool {
		return catalog.Projects[i].ProjectPath < catalog.Projects[j].ProjectPath
	})

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("project store: marshal catalog: %w", err)
	}
	return s.writeFileAtomic(s.catalogPath(), data, "")
}

func (s *ProjectStore) removeCatalogEntryLocked(projectPath string) error {
	catalog, err := s.readCatalogLocked()
	if err != nil {
		return err
	}
	filtered := catalog.Projects[:0]
	for _, entry := range catalog.Projects {
		if entry.ProjectPath != projectPath {
			filtered = append(filtered, entry)
		}
	}
	catalog.Projects = filtered

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("project store: marshal catalog: %w", err)
	}
	return s.writeFileAtomic(s.catalogPath(), data, "")
}
