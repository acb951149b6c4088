package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// LocalVectorStore implements VectorStore over one collectionIndex per
// collection name, each persisted under its own subdirectory of baseDir.
// This is the "no external endpoint configured" fallback from SPEC_FULL.md
// §4.5 — chosen instead of QdrantVectorStore when QDRANT_URL is unset.
type LocalVectorStore struct {
	mu          sync.Mutex
	baseDir     string
	collections map[string]*collectionIndex
}

// NewLocalVectorStore roots collection directories under baseDir.
func NewLocalVectorStore(baseDir string) *LocalVectorStore {
	return &LocalVectorStore{
		baseDir:     baseDir,
		collections: make(map[string]*collectionIndex),
	}
}

func (l *LocalVectorStore) collectionPath(name string) string {
	return filepath.Join(l.baseDir, name, "vectors.hnsw")
}

// EnsureCollection creates the named collection if absent, loading it from
// disk if a prior run persisted one. "Already exists" is never an error.
func (l *LocalVectorStore) EnsureCollection(ctx context.Context, collection string, dim int, distance Distance, quant Quantization) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.collections[collection]; exists {
		return nil
	}

	cfg := DefaultVectorStoreConfig(dim)
	cfg.Quantization = quant
	if distance == DistanceEuclidean {
		cfg.Metric = "l2"
	}

	idx := newCollectionIndex(cfg)
	path := l.collectionPath(collection)
	if err := idx.load(path); err != nil {
		// No persisted collection yet; start empty. Any other load
		// error (corrupt metadata, truncated export) also falls back
		// to a fresh collection rather than failing ensure_collection.
		idx = newCollectionIndex(cfg)
	}
	l.collections[collection] = idx
	return nil
}

func (l *LocalVectorStore) get(collection string) (*collectionIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.collections[collection]
	if !ok {
		return nil, fmt.Errorf("store: collection %q not ensured", collection)
	}
	return idx, nil
}

// Upsert inserts or replaces vectors in collection.
func (l *LocalVectorStore) Upsert(ctx context.Context, collection string, items []VectorItem) error {
	idx, err := l.get(collection)
	if err != nil {
		return err
	}
	if err := idx.upsert(items); err != nil {
		return err
	}
	return idx.save(l.collectionPath(collection))
}

// Delete removes vectors by hashed id from collection.
func (l *LocalVectorStore) Delete(ctx context.Context, collection string, hashedIDs []uint64) error {
	idx, err := l.get(collection)
	if err != nil {
		return err
	}
	idx.delete(hashedIDs)
	return idx.save(l.collectionPath(collection))
}

// Search runs a k-NN query against collection, returning chunk ids.
func (l *LocalVectorStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]VectorResult, error) {
	idx, err := l.get(collection)
	if err != nil {
		return nil, err
	}
	return idx.search(query, topK)
}

// Close closes every open collection.
func (l *LocalVectorStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, idx := range l.collections {
		if err := idx.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ VectorStore = (*LocalVectorStore)(nil)
