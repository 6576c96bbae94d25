package retrieval

import (
	"github.com/circularqa/coreqa/internal/bm25"
	"github.com/circularqa/coreqa/internal/models"
)

// LexicalRetriever wraps internal/bm25's index to satisfy the retrieval
// package's shared Search shape, per spec.md §4.7.
type LexicalRetriever struct {
	index *bm25.Index
}

// NewLexicalRetriever wraps a built/loaded BM25 index.
func NewLexicalRetriever(index *bm25.Index) *LexicalRetriever {
	return &LexicalRetriever{index: index}
}

// Search tokenizes query identically to indexing, scores every document
// with BM25Okapi, and returns the min-max normalized, descending-sorted
// result list.
func (l *LexicalRetriever) Search(query string) models.ScoredList {
	return l.index.Search(query)
}
