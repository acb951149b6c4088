package embed

import (
	"context"
	"sync"
)

// Session serializes every call to an Embedder behind a single mutex.
// Real local models hold a bounded amount of working memory per
// inference call; running two calls concurrently would double that
// footprint for no throughput gain, so every caller (indexing jobs and
// query-time embedding alike) goes through the same session.
type Session struct {
	mu       sync.Mutex
	embedder Embedder
}

// NewSession wraps embedder with call serialization.
func NewSession(embedder Embedder) *Session {
	return &Session{embedder: embedder}
}

func (s *Session) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.Embed(ctx, text)
}

func (s *Session) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.EmbedBatch(ctx, texts)
}

func (s *Session) Dimensions() int { return s.embedder.Dimensions() }
func (s *Session) ModelName() string { return s.embedder.ModelName() }

func (s *Session) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.Available(ctx)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.Close()
}

var _ Embedder = (*Session)(nil)
