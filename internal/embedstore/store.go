// Package embedstore provides the EmbeddingStore abstraction of spec.md
// §3: id -> dense, L2-normalized vector, with separate stores for
// passages, entities, and facts. The default implementation holds vectors
// in memory for exact-matrix cosine similarity (per §4.6/§4.9); a
// Qdrant-backed implementation satisfies the same interface for operators
// who persist embeddings outside process memory.
package embedstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/circularqa/coreqa/internal/models"
)

// Store maps ids to L2-normalized dense vectors and supports the two
// operations the retrieval core needs: looking a vector up by id, and
// ranking every stored vector against a query vector by cosine similarity.
type Store interface {
	// Upsert stores (or replaces) the vector for id. vec must already be
	// L2-normalized; Store does not renormalize.
	Upsert(ctx context.Context, id string, vec []float32) error
	// Get returns the vector for id.
	Get(ctx context.Context, id string) ([]float32, bool, error)
	// SearchAll scores every stored vector against query by cosine
	// similarity and returns all results sorted descending — callers
	// truncate to whatever top-k they need, per spec.md §4.6 ("Returns
	// all passages ranked — callers truncate").
	SearchAll(ctx context.Context, query []float32) (models.ScoredList, error)
	// Len returns the number of stored vectors.
	Len(ctx context.Context) (int, error)
}

// Normalize L2-normalizes v in place and returns it.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// MemoryStore is the default in-memory Store: a plain id->vector map,
// scanned linearly for cosine similarity. This matches spec.md §4.6's
// "compute cosine similarity against the passage embedding matrix"
// exactly — no approximate-nearest-neighbor shortcuts.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	order   []string // insertion order, for deterministic iteration
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vectors: make(map[string][]float32)}
}

func (s *MemoryStore) Upsert(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vectors[id]; !exists {
		s.order = append(s.order, id)
	}
	s.vectors[id] = vec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[id]
	return v, ok, nil
}

func (s *MemoryStore) SearchAll(_ context.Context, query []float32) (models.ScoredList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.ScoredList, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, models.Scored{ID: id, Score: cosine(query, s.vectors[id])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// Gateway is the narrow embedding capability the core consumes (spec.md §4.1).
type Gateway interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAndUpsert embeds texts via gw and stores each L2-normalized vector
// under its corresponding id in store. len(ids) must equal len(texts).
func EmbedAndUpsert(ctx context.Context, gw Gateway, store Store, ids []string, texts []string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("embedstore: ids/texts length mismatch: %d vs %d", len(ids), len(texts))
	}
	vectors, err := gw.Embed(ctx, texts)
	if err != nil {
		return err
	}
	for i, v := range vectors {
		if err := store.Upsert(ctx, ids[i], Normalize(v)); err != nil {
			return err
		}
	}
	return nil
}
