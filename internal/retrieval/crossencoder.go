package retrieval

import (
	"context"
	"sort"

	"github.com/circularqa/coreqa/internal/llmgateway"
)

// CrossEncoderRerank reorders the top 2*retrievalTopK candidates by a
// rerank-model score over (query, passage) pairs, returning the top
// retrievalTopK, per spec.md §4.12. On model failure or an empty
// candidate set, the input order is passed through unchanged — the
// reranker is a quality refinement, never a hard dependency for the
// pipeline to produce an answer.
func CrossEncoderRerank(ctx context.Context, gw *llmgateway.Gateway, query string, docs []Document, retrievalTopK int) []Document {
	if len(docs) == 0 {
		return docs
	}
	candidateCount := 2 * retrievalTopK
	if candidateCount > len(docs) || candidateCount <= 0 {
		candidateCount = len(docs)
	}
	candidates := docs[:candidateCount]

	texts := make([]string, len(candidates))
	for i, d := range candidates {
		texts[i] = d.Content
	}

	results, err := gw.Rerank(ctx, query, texts, retrievalTopK)
	if err != nil || len(results) == 0 {
		if retrievalTopK > 0 && retrievalTopK < len(docs) {
			return docs[:retrievalTopK]
		}
		return docs
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	out := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		out = append(out, candidates[r.Index])
	}
	if retrievalTopK > 0 && retrievalTopK < len(out) {
		out = out[:retrievalTopK]
	}
	return out
}
