package embedstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/circularqa/coreqa/internal/models"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore is a Store backed by a Qdrant collection, grounded on the
// teacher's internal/adapters/vectordb/qdrant/adapter.go client-wrapping
// shape. SearchAll still needs every vector ranked (spec.md §4.6 returns
// the full ranked list for callers to truncate), so it asks Qdrant for a
// limit covering the whole collection rather than relying on Qdrant's own
// top-k — the exactness the spec calls for matters more than Qdrant's ANN
// shortcuts here.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore dials host:port and ensures the named collection exists
// with the given vector dimension, using cosine distance.
func NewQdrantStore(ctx context.Context, host string, port int, collection string, dim int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedstore: qdrant client: %w", err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("embedstore: checking collection %s: %w", collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("embedstore: creating collection %s: %w", collection, err)
		}
	}
	return &QdrantStore{client: client, collection: collection}, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, id string, vec []float32) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(hashToUint64(id)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{"hash_id": id}),
		}},
	})
	return err
}

func (s *QdrantStore) Get(ctx context.Context, id string) ([]float32, bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(hashToUint64(id))},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, false, err
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return points[0].GetVectors().GetVector().GetData(), true, nil
}

func (s *QdrantStore) SearchAll(ctx context.Context, query []float32) (models.ScoredList, error) {
	count, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	limit := uint64(count)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make(models.ScoredList, len(results))
	for i, r := range results {
		id := r.GetPayload()["hash_id"].GetStringValue()
		out[i] = models.Scored{ID: id, Score: float64(r.GetScore())}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *QdrantStore) Len(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// hashToUint64 derives a deterministic numeric point id from a hash-id
// string, since Qdrant point ids are either UUIDs or uint64s.
func hashToUint64(id string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}
