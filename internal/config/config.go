// Package config reads codivex's environment-variable surface (spec.md
// §6.3) into a single Config struct at startup, with an optional on-disk
// YAML file the env vars can override — env read once, no global mutable
// state (spec.md §9).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codivex/codivex/internal/front"
	"github.com/codivex/codivex/internal/search"
)

// Config is codivex's resolved runtime configuration.
type Config struct {
	// RepoPaths overrides which repo roots are indexed (CODIVEX_REPO_PATHS,
	// comma-separated).
	RepoPaths []string `yaml:"repo_paths" json:"repo_paths"`

	// ProjectRoots resolves relative scopes at the request front
	// (CODIVEX_PROJECT_ROOTS, platform path-list separated).
	ProjectRoots []string `yaml:"project_roots" json:"project_roots"`

	// ModelPath and TokenizerPath locate the embedder's resources
	// (CODIVEX_MODEL_PATH, CODIVEX_TOKENIZER_PATH).
	ModelPath     string `yaml:"model_path" json:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path" json:"tokenizer_path"`

	// AllowPseudoEmbed enables the deterministic fallback embedder
	// (CODIVEX_ALLOW_PSEUDO_EMBED).
	AllowPseudoEmbed bool `yaml:"allow_pseudo_embed" json:"allow_pseudo_embed"`

	// DefaultTopK is the default top_k for searchCode (CODIVEX_DEFAULT_TOP_K).
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// APIToken, when non-empty, is required as the x-api-token header
	// value (MCP_API_TOKEN).
	APIToken string `yaml:"api_token" json:"api_token"`

	// RetrievalTier selects which QueryPipeline stages run
	// (MCP_RETRIEVAL_TIER).
	RetrievalTier search.RetrievalTier `yaml:"retrieval_tier" json:"retrieval_tier"`

	// RerankTopN is the re-rank window size (MCP_RERANK_TOP_N).
	RerankTopN int `yaml:"rerank_top_n" json:"rerank_top_n"`

	// QueryCacheCapacity is the QueryCache's LRU capacity
	// (MCP_QUERY_CACHE_CAPACITY).
	QueryCacheCapacity int `yaml:"query_cache_capacity" json:"query_cache_capacity"`

	// MaxFileBytes is the scanner's size cap (INDEX_MAX_FILE_BYTES).
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes"`

	// QdrantURL, when set, enables the external vector store backend
	// (QDRANT_URL).
	QdrantURL string `yaml:"qdrant_url" json:"qdrant_url"`

	// EmbeddingDevice and EmbeddingGPUAvailable steer embedder device
	// selection (EMBEDDING_DEVICE, EMBEDDING_GPU_AVAILABLE).
	EmbeddingDevice       string `yaml:"embedding_device" json:"embedding_device"`
	EmbeddingGPUAvailable bool   `yaml:"embedding_gpu_available" json:"embedding_gpu_available"`
}

// Defaults matching the rest of the package's DefaultXxx constants.
const (
	DefaultTopK            = 5
	DefaultMaxFileBytes    = 8 * 1024 * 1024
	DefaultRerankTopN      = search.DefaultRerankTopN
	DefaultQueryCacheCap   = search.DefaultQueryCacheCapacity
)

// NewConfig returns a Config populated with spec defaults, no environment
// or file overrides applied.
func NewConfig() *Config {
	return &Config{
		DefaultTopK:        DefaultTopK,
		RetrievalTier:      search.TierHybrid,
		RerankTopN:         DefaultRerankTopN,
		QueryCacheCapacity: DefaultQueryCacheCap,
		MaxFileBytes:       DefaultMaxFileBytes,
	}
}

// Load builds a Config from defaults, an optional YAML file under dir
// (config.yaml, if present), then environment overrides, in that
// precedence order (env highest).
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if dir != "" {
		if err := cfg.loadFromFile(filepath.Join(dir, "config.yaml")); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.mergeWith(&fromFile)
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if len(other.RepoPaths) > 0 {
		c.RepoPaths = other.RepoPaths
	}
	if len(other.ProjectRoots) > 0 {
		c.ProjectRoots = other.ProjectRoots
	}
	if other.ModelPath != "" {
		c.ModelPath = other.ModelPath
	}
	if other.TokenizerPath != "" {
		c.TokenizerPath = other.TokenizerPath
	}
	if other.AllowPseudoEmbed {
		c.AllowPseudoEmbed = other.AllowPseudoEmbed
	}
	if other.DefaultTopK != 0 {
		c.DefaultTopK = other.DefaultTopK
	}
	if other.APIToken != "" {
		c.APIToken = other.APIToken
	}
	if other.RetrievalTier != "" {
		c.RetrievalTier = other.RetrievalTier
	}
	if other.RerankTopN != 0 {
		c.RerankTopN = other.RerankTopN
	}
	if other.QueryCacheCapacity != 0 {
		c.QueryCacheCapacity = other.QueryCacheCapacity
	}
	if other.MaxFileBytes != 0 {
		c.MaxFileBytes = other.MaxFileBytes
	}
	if other.QdrantURL != "" {
		c.QdrantURL = other.QdrantURL
	}
	if other.EmbeddingDevice != "" {
		c.EmbeddingDevice = other.EmbeddingDevice
	}
	if other.EmbeddingGPUAvailable {
		c.EmbeddingGPUAvailable = other.EmbeddingGPUAvailable
	}
}

// applyEnvOverrides reads the exact environment surface from spec.md
// §6.3, each variable read exactly once.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODIVEX_REPO_PATHS"); v != "" {
		c.RepoPaths = splitNonEmpty(v, ",")
	}
	if v := os.Getenv("CODIVEX_PROJECT_ROOTS"); v != "" {
		c.ProjectRoots = front.ParseProjectRoots(v)
	}
	if v := os.Getenv("CODIVEX_MODEL_PATH"); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv("CODIVEX_TOKENIZER_PATH"); v != "" {
		c.TokenizerPath = v
	}
	if v := os.Getenv("CODIVEX_ALLOW_PSEUDO_EMBED"); v != "" {
		c.AllowPseudoEmbed = parseBool(v)
	}
	if v := os.Getenv("CODIVEX_DEFAULT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultTopK = n
		}
	}
	if v := os.Getenv("MCP_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("MCP_RETRIEVAL_TIER"); v != "" {
		c.RetrievalTier = search.ParseRetrievalTier(v)
	}
	if v := os.Getenv("MCP_RERANK_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RerankTopN = n
		}
	}
	if v := os.Getenv("MCP_QUERY_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueryCacheCapacity = n
		}
	}
	if v := os.Getenv("INDEX_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFileBytes = n
		}
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.QdrantURL = v
	}
	if v := os.Getenv("EMBEDDING_DEVICE"); v != "" {
		c.EmbeddingDevice = v
	}
	if v := os.Getenv("EMBEDDING_GPU_AVAILABLE"); v != "" {
		c.EmbeddingGPUAvailable = parseBool(v)
	}
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && v
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GetUserConfigPath returns the path to codivex's optional on-disk
// config file, honoring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codivex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".codivex", "config.yaml")
	}
	return filepath.Join(home, ".config", "codivex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// WriteYAML marshals c and writes it to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks invariants a caller should surface before startup.
func (c *Config) Validate() error {
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("config: default_top_k must be positive, got %d", c.DefaultTopK)
	}
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("config: max_file_bytes must be positive, got %d", c.MaxFileBytes)
	}
	switch c.RetrievalTier {
	case search.TierFast, search.TierHybrid, search.TierHybridRerank:
	default:
		return fmt.Errorf("config: unrecognized retrieval tier %q", c.RetrievalTier)
	}
	return nil
}
