package retrieval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/retrieval"
)

type rerankOnlyBackend struct {
	order []int
	err   error
}

func (b rerankOnlyBackend) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (b rerankOnlyBackend) Complete(_ context.Context, _ []llmgateway.Message, _ llmgateway.CompleteParams) (llmgateway.CompleteResult, error) {
	return llmgateway.CompleteResult{}, errors.New("not used")
}

func (b rerankOnlyBackend) Rerank(_ context.Context, _ string, documents []string, topK int) ([]llmgateway.RerankResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]llmgateway.RerankResult, 0, len(documents))
	for rank, idx := range b.order {
		if idx >= len(documents) {
			continue
		}
		out = append(out, llmgateway.RerankResult{Index: idx, Score: float64(len(b.order) - rank)})
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

type noopCache struct{}

func (noopCache) Get(_ context.Context, _ string) (string, string, bool, error) { return "", "", false, nil }
func (noopCache) Set(_ context.Context, _, _, _ string) error                  { return nil }

func sampleDocs() []retrieval.Document {
	return []retrieval.Document{
		{ID: "a", Content: "passage a", Score: 0.9},
		{ID: "b", Content: "passage b", Score: 0.8},
		{ID: "c", Content: "passage c", Score: 0.7},
	}
}

func TestCrossEncoderRerank_ReordersByRerankScore(t *testing.T) {
	backend := rerankOnlyBackend{order: []int{2, 0, 1}}
	gw := llmgateway.New(backend, noopCache{}, "rerank-model", 1, time.Millisecond, nil)

	out := retrieval.CrossEncoderRerank(context.Background(), gw, "query", sampleDocs(), 2)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
}

func TestCrossEncoderRerank_PassesThroughOnRerankFailure(t *testing.T) {
	backend := rerankOnlyBackend{err: errors.New("unavailable")}
	gw := llmgateway.New(backend, noopCache{}, "rerank-model", 1, time.Millisecond, nil)

	docs := sampleDocs()
	out := retrieval.CrossEncoderRerank(context.Background(), gw, "query", docs, 2)
	require.Len(t, out, 2)
	assert.Equal(t, docs[0].ID, out[0].ID)
	assert.Equal(t, docs[1].ID, out[1].ID)
}

func TestCrossEncoderRerank_EmptyDocsReturnsEmpty(t *testing.T) {
	backend := rerankOnlyBackend{}
	gw := llmgateway.New(backend, noopCache{}, "rerank-model", 1, time.Millisecond, nil)

	out := retrieval.CrossEncoderRerank(context.Background(), gw, "query", nil, 2)
	assert.Empty(t, out)
}
