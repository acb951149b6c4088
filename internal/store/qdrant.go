package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantVectorStore implements VectorStore against a real Qdrant instance,
// used when QDRANT_URL names an external collaborator instead of the
// local HNSW fallback.
type QdrantVectorStore struct {
	client *qdrant.Client
}

// NewQdrantVectorStore connects to Qdrant's gRPC port on host.
func NewQdrantVectorStore(host string, port int, useTLS bool) (*QdrantVectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantVectorStore{client: client}, nil
}

func qdrantDistance(d Distance) qdrant.Distance {
	switch d {
	case DistanceEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection creates collection if it doesn't already exist.
// "Already exists" is not an error.
func (q *QdrantVectorStore) EnsureCollection(ctx context.Context, collection string, dim int, distance Distance, quant Quantization) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", collection, err)
	}
	if exists {
		return nil
	}

	create := &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrantDistance(distance),
				},
			},
		},
	}
	if quant == QuantInt8 || quant == QuantUint8 {
		create.QuantizationConfig = &qdrant.QuantizationConfig{
			Quantization: &qdrant.QuantizationConfig_Scalar{
				Scalar: &qdrant.ScalarQuantization{
					Type: qdrant.QuantizationType_Int8,
				},
			},
		}
	}

	if err := q.client.CreateCollection(ctx, create); err != nil {
		return fmt.Errorf("create collection %q: %w", collection, err)
	}
	return nil
}

// Upsert writes items, keyed by their hashed chunk id, with a payload of
// {path, chunk_id} so a search hit can be traced back to its chunk.
func (q *QdrantVectorStore) Upsert(ctx context.Context, collection string, items []VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		vector := make([]float32, len(item.Vector))
		copy(vector, item.Vector)

		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Num{Num: item.HashedID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: vector},
				},
			},
			Payload: map[string]*qdrant.Value{
				"path":     qdrant.NewValueString(item.Path),
				"chunk_id": qdrant.NewValueString(item.ChunkID),
			},
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert into %q: %w", collection, err)
	}
	return nil
}

// Delete removes points by their hashed chunk id.
func (q *QdrantVectorStore) Delete(ctx context.Context, collection string, hashedIDs []uint64) error {
	if len(hashedIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, len(hashedIDs))
	for i, id := range hashedIDs {
		ids[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: id}}
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete from %q: %w", collection, err)
	}
	return nil
}

// Search returns chunk ids extracted from each hit's payload.
func (q *QdrantVectorStore) Search(ctx context.Context, collection string, query []float32, topK int) ([]VectorResult, error) {
	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}

	out := make([]VectorResult, 0, len(results))
	for _, r := range results {
		chunkID := r.Payload["chunk_id"].GetStringValue()
		out = append(out, VectorResult{
			ID:    chunkID,
			Score: r.Score,
		})
	}
	return out, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantVectorStore) Close() error {
	return q.client.Close()
}

var _ VectorStore = (*QdrantVectorStore)(nil)
