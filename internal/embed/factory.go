package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Config selects and configures an Embedder.
type Config struct {
	ModelPath       string // CODIVEX_MODEL_PATH
	TokenizerPath   string // CODIVEX_TOKENIZER_PATH
	AllowPseudo     bool   // CODIVEX_ALLOW_PSEUDO_EMBED
	Dimensions      int
	CacheSize       int
	Device          string // EMBEDDING_DEVICE
	GPUAvailable    bool   // EMBEDDING_GPU_AVAILABLE
}

// ConfigFromEnv reads the embedder environment-variable surface.
func ConfigFromEnv() Config {
	cfg := Config{
		ModelPath:     os.Getenv("CODIVEX_MODEL_PATH"),
		TokenizerPath: os.Getenv("CODIVEX_TOKENIZER_PATH"),
		AllowPseudo:   os.Getenv("CODIVEX_ALLOW_PSEUDO_EMBED") != "",
		Dimensions:    DefaultDimensions,
		CacheSize:     DefaultEmbeddingCacheSize,
		Device:        os.Getenv("EMBEDDING_DEVICE"),
	}
	if v, err := strconv.ParseBool(os.Getenv("EMBEDDING_GPU_AVAILABLE")); err == nil {
		cfg.GPUAvailable = v
	}
	return cfg
}

// NewEmbedder selects a backend per cfg: a local model if ModelPath is
// set, otherwise the deterministic pseudo backend if AllowPseudo is set.
// With neither, embedding is unavailable and callers must treat the
// semantic retrieval stage as disabled (a Fast-tier pipeline, or a
// Hybrid one that degrades to lexical-only on the first failed Embed
// call).
//
// Loading a real local model is out of scope here (the neural-network
// inference itself is an opaque collaborator); NewEmbedder's job is
// picking the backend and wrapping it with the cross-process lock,
// serialized session, and LRU cache every backend needs.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var backend Embedder

	switch {
	case cfg.ModelPath != "":
		lock := NewFileLock(filepath.Dir(cfg.ModelPath))
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("embed: acquire model lock: %w", err)
		}
		defer lock.Unlock()

		loaded, err := loadLocalModel(ctx, cfg)
		if err != nil {
			if !cfg.AllowPseudo {
				return nil, fmt.Errorf("embed: local model unavailable and pseudo fallback disabled: %w", err)
			}
			slog.Warn("embed_local_model_unavailable_falling_back_to_pseudo", slog.String("error", err.Error()))
			backend = NewPseudoEmbedder(cfg.Dimensions)
		} else {
			backend = loaded
		}

	case cfg.AllowPseudo:
		backend = NewPseudoEmbedder(cfg.Dimensions)

	default:
		return nil, fmt.Errorf("embed: no model configured (set CODIVEX_MODEL_PATH or CODIVEX_ALLOW_PSEUDO_EMBED)")
	}

	cached := NewCachedEmbedderWithDefaults(backend)
	return NewSession(cached), nil
}

// loadLocalModel is the seam for a real on-disk model loader. codivex
// treats embedding inference as an opaque collaborator, so there is no
// concrete local-model backend here; this always returns an error, and
// NewEmbedder falls back to the pseudo embedder only when AllowPseudo is set.
func loadLocalModel(_ context.Context, cfg Config) (Embedder, error) {
	return nil, fmt.Errorf("embed: local model loading not implemented (path=%s)", cfg.ModelPath)
}
