package supervisor

import (
	"context"
	"fmt"

	"github.com/codivex/codivex/internal/store"
)

// rebuildLexical resets a project's lexical index and re-adds every
// chunk, used for the initial full index.
func (s *IndexingSupervisor) rebuildLexical(ctx context.Context, projectPath string, chunks []store.IndexedChunk) error {
	idx, err := store.OpenOrCreate(s.projects.LexicalIndexDir(projectPath), store.DefaultBM25Config())
	if err != nil {
		return fmt.Errorf("supervisor: open lexical index: %w", err)
	}
	defer idx.Close()

	if err := idx.Reset(ctx); err != nil {
		return fmt.Errorf("supervisor: reset lexical index: %w", err)
	}
	for _, c := range chunks {
		if err := idx.AddChunk(ctx, store.Document{ID: c.ID, Path: c.File, Symbol: c.Symbol, Content: c.Content}); err != nil {
			return fmt.Errorf("supervisor: index chunk %s: %w", c.ID, err)
		}
	}
	return idx.Commit()
}

// updateLexical deletes removedIDs and adds fresh, used for incremental
// updates where a full reset would discard untouched documents.
func (s *IndexingSupervisor) updateLexical(ctx context.Context, projectPath string, removedIDs []string, fresh []store.IndexedChunk) error {
	idx, err := store.OpenOrCreate(s.projects.LexicalIndexDir(projectPath), store.DefaultBM25Config())
	if err != nil {
		return fmt.Errorf("supervisor: open lexical index: %w", err)
	}
	defer idx.Close()

	if len(removedIDs) > 0 {
		if err := idx.Delete(ctx, removedIDs); err != nil {
			return fmt.Errorf("supervisor: delete stale chunks: %w", err)
		}
	}
	for _, c := range fresh {
		if err := idx.AddChunk(ctx, store.Document{ID: c.ID, Path: c.File, Symbol: c.Symbol, Content: c.Content}); err != nil {
			return fmt.Errorf("supervisor: index chunk %s: %w", c.ID, err)
		}
	}
	return idx.Commit()
}

// rebuildVectors embeds and upserts every chunk's content into the
// project's vector collection, used for the initial full index.
func (s *IndexingSupervisor) rebuildVectors(ctx context.Context, projectPath string, chunks []store.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection := store.ProjectVectorCollection(projectPath)
	if err := s.vectors.EnsureCollection(ctx, collection, s.embedder.Dimensions(), store.DistanceCosine, store.QuantNone); err != nil {
		return fmt.Errorf("supervisor: ensure vector collection: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("supervisor: embed chunks: %w", err)
	}

	items := make([]store.VectorItem, len(chunks))
	for i, c := range chunks {
		items[i] = store.VectorItem{
			HashedID: store.HashChunkID(c.ID),
			ChunkID:  c.ID,
			Path:     c.File,
			Vector:   vectors[i],
		}
	}
	return s.vectors.Upsert(ctx, collection, items)
}

// updateVectors deletes stale points and upserts fresh ones, used for
// incremental updates.
func (s *IndexingSupervisor) updateVectors(ctx context.Context, projectPath string, removedIDs []string, fresh []store.IndexedChunk) error {
	collection := store.ProjectVectorCollection(projectPath)

	if len(removedIDs) > 0 {
		hashed := make([]uint64, len(removedIDs))
		for i, id := range removedIDs {
			hashed[i] = store.HashChunkID(id)
		}
		if err := s.vectors.Delete(ctx, collection, hashed); err != nil {
			return fmt.Errorf("supervisor: delete stale vectors: %w", err)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := s.vectors.EnsureCollection(ctx, collection, s.embedder.Dimensions(), store.DistanceCosine, store.QuantNone); err != nil {
		return fmt.Errorf("supervisor: ensure vector collection: %w", err)
	}

	texts := make([]string, len(fresh))
	for i, c := range fresh {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("supervisor: embed fresh chunks: %w", err)
	}

	items := make([]store.VectorItem, len(fresh))
	for i, c := range fresh {
		items[i] = store.VectorItem{
			HashedID: store.HashChunkID(c.ID),
			ChunkID:  c.ID,
			Path:     c.File,
			Vector:   vectors[i],
		}
	}
	return s.vectors.Upsert(ctx, collection, items)
}
