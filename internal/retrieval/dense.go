// Package retrieval assembles the dense, lexical, fact-linked, and fused
// retrieval stages of spec.md §4.6–§4.12 on top of internal/embedstore,
// internal/bm25, internal/graph, and internal/llmgateway.
package retrieval

import (
	"context"

	"github.com/circularqa/coreqa/internal/embedstore"
	"github.com/circularqa/coreqa/internal/models"
)

// DenseRetriever embeds a query and ranks passages by cosine similarity
// against the passage embedding matrix, per spec.md §4.6. It returns every
// passage ranked; callers truncate.
type DenseRetriever struct {
	gateway embedstore.Gateway
	store   embedstore.Store
}

// NewDenseRetriever builds a retriever over store, embedding queries
// through gateway.
func NewDenseRetriever(gateway embedstore.Gateway, store embedstore.Store) *DenseRetriever {
	return &DenseRetriever{gateway: gateway, store: store}
}

// Search embeds query and returns passages sorted by cosine similarity,
// descending.
func (d *DenseRetriever) Search(ctx context.Context, query string) (models.ScoredList, error) {
	vectors, err := d.gateway.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return models.ScoredList{}, nil
	}
	return d.store.SearchAll(ctx, embedstore.Normalize(vectors[0]))
}
