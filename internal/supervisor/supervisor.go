// Package supervisor discovers configured repo roots, keeps each one's
// index current by reacting to filesystem events, and exposes a
// per-project runtime status map for callers (the CLI, RequestFront)
// to inspect. Grounded on the teacher's internal/async goroutine +
// channel lifecycle idiom, restyled to feed per-project state instead
// of one global indexer.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codivex/codivex/internal/async"
	"github.com/codivex/codivex/internal/chunk"
	"github.com/codivex/codivex/internal/scanner"
	"github.com/codivex/codivex/internal/store"
	"github.com/codivex/codivex/internal/watcher"
)

// DiscoveryInterval is how often the supervisor re-scans RepoPaths for
// roots it isn't already watching.
const DiscoveryInterval = 5 * time.Second

// IdleTimeout is how long a project's watcher goroutine waits after the
// last received event batch before applying the accumulated update,
// coalescing bursts of filesystem activity (e.g. a branch checkout)
// into one re-index pass.
const IdleTimeout = 250 * time.Millisecond

// Embedder is the minimal embedding capability the supervisor needs;
// satisfied structurally by *embed.Session.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ProjectRuntimeStatus is the supervisor's view of one project, read
// by callers that want to know whether a scope is indexed and healthy.
type ProjectRuntimeStatus struct {
	ProjectPath         string
	Watching            bool
	LastIndexedUnix     int64
	LastError           string
	ChunksIndexed       int
	LastIndexDurationMs int64
	QueueDepth          int
}

// Config configures an IndexingSupervisor.
type Config struct {
	RepoPaths     []string
	MaxFileBytes  int64
	DescendPolicy chunk.DescendPolicy
}

// IndexingSupervisor owns the discovery loop and one watcher goroutine
// per discovered project root.
type IndexingSupervisor struct {
	cfg      Config
	projects *store.ProjectStore
	registry *chunk.LanguageRegistry
	scanner  *scanner.Scanner
	chunker  *chunk.MultiChunker
	vectors  store.VectorStore
	embedder Embedder
	log      *slog.Logger

	mu     sync.Mutex
	active map[string]*projectWatcher

	statusMu sync.RWMutex
	status   map[string]*ProjectRuntimeStatus

	// gitignoreMu guards gitignoreContent, the last-seen root .gitignore
	// body per project, used to diff pattern changes on OpGitignoreChange
	// instead of a full rescan.
	gitignoreMu      sync.Mutex
	gitignoreContent map[string]string
}

// batchWatcher is the shape HybridWatcher actually implements: events
// arrive coalesced into batches, not one at a time, so it cannot satisfy
// watcher.Watcher's singular Events() <-chan FileEvent.
type batchWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan []watcher.FileEvent
	Errors() <-chan error
}

type projectWatcher struct {
	path   string
	watch  batchWatcher
	cancel context.CancelFunc
}

// New builds a supervisor. vectors and embedder may both be nil, in
// which case every project indexes lexically only.
func New(cfg Config, projects *store.ProjectStore, vectors store.VectorStore, embedder Embedder) (*IndexingSupervisor, error) {
	registry := chunk.DefaultRegistry()
	sc, err := scanner.New(registry, cfg.MaxFileBytes)
	if err != nil {
		return nil, fmt.Errorf("supervisor: build scanner: %w", err)
	}
	chunker, err := chunk.NewMultiChunker(registry, cfg.DescendPolicy)
	if err != nil {
		return nil, fmt.Errorf("supervisor: build chunker: %w", err)
	}

	return &IndexingSupervisor{
		cfg:              cfg,
		projects:         projects,
		registry:         registry,
		scanner:          sc,
		chunker:          chunker,
		vectors:          vectors,
		embedder:         embedder,
		log:              slog.Default(),
		active:           make(map[string]*projectWatcher),
		status:           make(map[string]*ProjectRuntimeStatus),
		gitignoreContent: make(map[string]string),
	}, nil
}

// IndexOnce runs a full index pass for projectPath outside the discovery
// loop and returns once it completes, without starting a watcher. Used by
// the CLI's one-shot "index" command.
func (s *IndexingSupervisor) IndexOnce(ctx context.Context, projectPath string) error {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("supervisor: resolve %s: %w", projectPath, err)
	}
	if err := s.projects.Select(abs); err != nil {
		return fmt.Errorf("supervisor: select project: %w", err)
	}
	started := time.Now()
	chunks, err := s.fullIndex(ctx, abs)
	if err != nil {
		s.setStatus(abs, func(st *ProjectRuntimeStatus) { st.LastError = err.Error() })
		return err
	}
	s.setStatus(abs, func(st *ProjectRuntimeStatus) {
		st.LastIndexedUnix = time.Now().Unix()
		st.LastError = ""
		st.ChunksIndexed = chunks
		st.LastIndexDurationMs = time.Since(started).Milliseconds()
	})
	return nil
}

// Status returns a snapshot of one project's runtime status, or false
// if the supervisor has never seen it.
func (s *IndexingSupervisor) Status(projectPath string) (ProjectRuntimeStatus, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st, ok := s.status[projectPath]
	if !ok {
		return ProjectRuntimeStatus{}, false
	}
	return *st, true
}

func (s *IndexingSupervisor) setStatus(projectPath string, fn func(*ProjectRuntimeStatus)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.status[projectPath]
	if !ok {
		st = &ProjectRuntimeStatus{ProjectPath: projectPath}
		s.status[projectPath] = st
	}
	fn(st)
}

// Run starts the discovery loop and blocks until ctx is canceled, at
// which point every per-project watcher is stopped before returning.
func (s *IndexingSupervisor) Run(ctx context.Context) error {
	s.discover(ctx)

	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return nil
		case <-ticker.C:
			s.discover(ctx)
		}
	}
}

// discover starts a project watcher for every configured root not
// already being watched. Indexing and watcher setup happen in their
// own goroutine per root so one slow/broken project never blocks
// discovery of the rest.
func (s *IndexingSupervisor) discover(ctx context.Context) {
	for _, root := range s.cfg.RepoPaths {
		abs, err := filepath.Abs(root)
		if err != nil {
			s.log.Warn("supervisor_resolve_root_failed", slog.String("root", root), slog.String("error", err.Error()))
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			s.log.Warn("supervisor_root_unavailable", slog.String("root", abs))
			continue
		}

		s.mu.Lock()
		_, already := s.active[abs]
		s.mu.Unlock()
		if already {
			continue
		}

		go s.adopt(ctx, abs)
	}
}

// adopt performs a project's initial full index, then hands it to a
// watcher goroutine for incremental updates.
func (s *IndexingSupervisor) adopt(ctx context.Context, projectPath string) {
	if err := s.projects.Select(projectPath); err != nil {
		s.log.Error("supervisor_select_project_failed", slog.String("project", projectPath), slog.String("error", err.Error()))
	}

	started := time.Now()
	chunks, err := s.fullIndex(ctx, projectPath)
	if err != nil {
		s.setStatus(projectPath, func(st *ProjectRuntimeStatus) { st.LastError = err.Error() })
		s.log.Error("supervisor_initial_index_failed", slog.String("project", projectPath), slog.String("error", err.Error()))
		return
	}
	indexDuration := time.Since(started)

	wctx, cancel := context.WithCancel(ctx)
	opts := watcher.DefaultOptions()
	opts.EventBufferSize = 256
	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		cancel()
		s.log.Error("supervisor_watcher_create_failed", slog.String("project", projectPath), slog.String("error", err.Error()))
		return
	}
	if err := hw.Start(wctx, projectPath); err != nil {
		cancel()
		s.log.Error("supervisor_watcher_start_failed", slog.String("project", projectPath), slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.active[projectPath] = &projectWatcher{path: projectPath, watch: hw, cancel: cancel}
	s.mu.Unlock()

	s.setStatus(projectPath, func(st *ProjectRuntimeStatus) {
		st.Watching = true
		st.LastIndexedUnix = time.Now().Unix()
		st.LastError = ""
		st.ChunksIndexed = chunks
		st.LastIndexDurationMs = indexDuration.Milliseconds()
	})

	go s.watchLoop(wctx, projectPath, hw)
}

// watchLoop races received event batches against IdleTimeout, applying
// one coalesced incremental update per quiet period rather than one per
// batch.
func (s *IndexingSupervisor) watchLoop(ctx context.Context, projectPath string, w batchWatcher) {
	var pending []watcher.FileEvent
	timer := time.NewTimer(IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			pending = append(pending, batch...)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(IdleTimeout)
			s.setStatus(projectPath, func(st *ProjectRuntimeStatus) { st.QueueDepth = len(w.Events()) })

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			s.setStatus(projectPath, func(st *ProjectRuntimeStatus) { st.LastError = err.Error() })
			s.log.Warn("supervisor_watcher_error", slog.String("project", projectPath), slog.String("error", err.Error()))

		case <-timer.C:
			if len(pending) == 0 {
				timer.Reset(IdleTimeout)
				continue
			}
			events := pending
			pending = nil
			started := time.Now()
			chunks, err := s.applyIncrementalUpdate(ctx, projectPath, events)
			if err != nil {
				s.setStatus(projectPath, func(st *ProjectRuntimeStatus) { st.LastError = err.Error() })
				s.log.Error("supervisor_incremental_update_failed", slog.String("project", projectPath), slog.String("error", err.Error()))
			} else {
				elapsed := time.Since(started)
				s.setStatus(projectPath, func(st *ProjectRuntimeStatus) {
					st.LastIndexedUnix = time.Now().Unix()
					st.LastError = ""
					st.ChunksIndexed = chunks
					st.LastIndexDurationMs = elapsed.Milliseconds()
					st.QueueDepth = 0
				})
			}
			timer.Reset(IdleTimeout)
		}
	}
}

func (s *IndexingSupervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, pw := range s.active {
		pw.cancel()
		if err := pw.watch.Stop(); err != nil {
			s.log.Warn("supervisor_watcher_stop_failed", slog.String("project", path), slog.String("error", err.Error()))
		}
	}
	s.active = make(map[string]*projectWatcher)
}
