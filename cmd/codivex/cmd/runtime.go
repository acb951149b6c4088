package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codivex/codivex/internal/chunk"
	"github.com/codivex/codivex/internal/config"
	"github.com/codivex/codivex/internal/embed"
	"github.com/codivex/codivex/internal/front"
	"github.com/codivex/codivex/internal/search"
	"github.com/codivex/codivex/internal/store"
	"github.com/codivex/codivex/internal/supervisor"
	"github.com/codivex/codivex/internal/telemetry"
)

// runtime bundles every long-lived collaborator a CLI command needs,
// wired from one resolved Config. Commands that don't need a piece
// (e.g. "index" never touches RequestFront) simply ignore it.
type runtime struct {
	cfg      *config.Config
	stateDir string
	projects *store.ProjectStore
	vectors  store.VectorStore
	embedder embed.Embedder
	pipeline *search.QueryPipeline
	front    *front.RequestFront
	sup      *supervisor.IndexingSupervisor
	metrics  *telemetry.QueryMetrics
}

// buildRuntime resolves configuration and wires every collaborator.
// embedding and vector-store construction degrade gracefully: an invalid or
// unreachable Qdrant URL falls back to the local vector store under the
// state directory, and an embedder that cannot be built prints a warning to
// stderr and leaves both the embedder and the vector store nil, which
// NewQueryPipeline accepts.
func buildRuntime(ctx context.Context) (*runtime, func(), error) {
	cfg, err := config.Load(config.GetUserConfigDir())
	if err != nil {
		return nil, nil, fmt.Errorf("codivex: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("codivex: invalid config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("codivex: resolve working directory: %w", err)
	}
	if len(cfg.RepoPaths) == 0 {
		cfg.RepoPaths = []string{cwd}
	}

	stateDir := filepath.Join(cwd, ".codivex")
	projects, err := store.NewProjectStore(stateDir)
	if err != nil {
		return nil, nil, fmt.Errorf("codivex: open project store: %w", err)
	}

	vectors := buildVectorStore(cfg, stateDir)

	embedCfg := embed.Config{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		AllowPseudo:   cfg.AllowPseudoEmbed,
		Dimensions:    embed.DefaultDimensions,
		CacheSize:     embed.DefaultEmbeddingCacheSize,
		Device:        cfg.EmbeddingDevice,
		GPUAvailable:  cfg.EmbeddingGPUAvailable,
	}
	embedder, err := embed.NewEmbedder(ctx, embedCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codivex: embedding disabled: %v\n", err)
		embedder = nil
		vectors = nil
	}

	pipeline := search.NewQueryPipeline(projects, vectors, embedder, nil, cfg.RetrievalTier, cfg.RerankTopN)
	cache := search.NewQueryCache(cfg.QueryCacheCapacity)
	reqFront := front.New(pipeline, cache, projects, cfg.ProjectRoots)
	metrics := telemetry.NewQueryMetrics(nil)
	reqFront.SetMetrics(metrics)

	sup, err := supervisor.New(supervisor.Config{
		RepoPaths:     cfg.RepoPaths,
		MaxFileBytes:  cfg.MaxFileBytes,
		DescendPolicy: chunk.DescendAll,
	}, projects, vectors, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("codivex: build indexing supervisor: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		stateDir: stateDir,
		projects: projects,
		vectors:  vectors,
		embedder: embedder,
		pipeline: pipeline,
		front:    reqFront,
		sup:      sup,
		metrics:  metrics,
	}

	cleanup := func() {
		if err := metrics.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "codivex: flush query metrics: %v\n", err)
		}
		if err := projects.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "codivex: release project store lock: %v\n", err)
		}
		if vectors != nil {
			_ = vectors.Close()
		}
	}
	return rt, cleanup, nil
}

// buildVectorStore picks QdrantVectorStore when QDRANT_URL parses to a
// usable host/port, otherwise the local HNSW-backed fallback.
func buildVectorStore(cfg *config.Config, stateDir string) store.VectorStore {
	if cfg.QdrantURL == "" {
		return store.NewLocalVectorStore(filepath.Join(stateDir, "vectors"))
	}

	u, err := url.Parse(cfg.QdrantURL)
	if err != nil || u.Hostname() == "" {
		fmt.Fprintf(os.Stderr, "codivex: invalid QDRANT_URL %q, using local vector store: %v\n", cfg.QdrantURL, err)
		return store.NewLocalVectorStore(filepath.Join(stateDir, "vectors"))
	}
	port := 6334
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	qdrant, err := store.NewQdrantVectorStore(u.Hostname(), port, u.Scheme == "https")
	if err != nil {
		fmt.Fprintf(os.Stderr, "codivex: cannot reach qdrant at %s, using local vector store: %v\n", cfg.QdrantURL, err)
		return store.NewLocalVectorStore(filepath.Join(stateDir, "vectors"))
	}
	return qdrant
}
