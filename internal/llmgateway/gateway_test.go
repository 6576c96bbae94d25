package llmgateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/pipelineerr"
)

// memCache is an in-memory stand-in for llmgateway.Cache, used instead of
// SQLiteCache so these tests touch no filesystem state.
type memCache struct {
	mu   sync.Mutex
	data map[string][2]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string][2]string)} }

func (c *memCache) Get(_ context.Context, key string) (string, string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v[0], v[1], ok, nil
}

func (c *memCache) Set(_ context.Context, key, message, metadata string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = [2]string{message, metadata}
	return nil
}

// fakeBackend records call counts and can be configured to fail a fixed
// number of times before succeeding, or fail permanently.
type fakeBackend struct {
	mu            sync.Mutex
	embedCalls    int
	completeCalls int
	failTimes     int
	permanent     bool
	completeText  string
}

func (b *fakeBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (b *fakeBackend) Complete(_ context.Context, _ []llmgateway.Message, _ llmgateway.CompleteParams) (llmgateway.CompleteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completeCalls++
	if b.permanent {
		return llmgateway.CompleteResult{}, pipelineerr.NewPermanent("complete", errors.New("bad api key"))
	}
	if b.completeCalls <= b.failTimes {
		return llmgateway.CompleteResult{}, pipelineerr.NewTransient("complete", errors.New("rate limited"))
	}
	return llmgateway.CompleteResult{Text: b.completeText}, nil
}

func (b *fakeBackend) Rerank(_ context.Context, _ string, documents []string, topK int) ([]llmgateway.RerankResult, error) {
	out := make([]llmgateway.RerankResult, len(documents))
	for i := range documents {
		out[i] = llmgateway.RerankResult{Index: i, Score: 1.0 / float64(i+1)}
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

func TestEmbed_CachesSecondCallWithoutHittingBackend(t *testing.T) {
	backend := &fakeBackend{}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 1, time.Millisecond, nil)
	ctx := context.Background()

	_, err := gw.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	_, err = gw.Embed(ctx, []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.embedCalls)
}

func TestComplete_RetriesTransientThenSucceeds(t *testing.T) {
	backend := &fakeBackend{failTimes: 2, completeText: "ok"}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 5, time.Millisecond, nil)

	result, err := gw.Complete(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, llmgateway.CompleteParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 3, backend.completeCalls)
}

func TestComplete_PermanentErrorSurfacesImmediatelyWithoutRetry(t *testing.T) {
	backend := &fakeBackend{permanent: true}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 5, time.Millisecond, nil)

	_, err := gw.Complete(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, llmgateway.CompleteParams{})
	require.Error(t, err)
	assert.Equal(t, 1, backend.completeCalls)
	assert.True(t, pipelineerr.IsPermanent(err))
}

func TestComplete_ExhaustingRetriesReturnsTransientError(t *testing.T) {
	backend := &fakeBackend{failTimes: 100}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 2, time.Millisecond, nil)

	_, err := gw.Complete(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, llmgateway.CompleteParams{})
	require.Error(t, err)
	assert.True(t, pipelineerr.IsTransient(err))
}

func TestComplete_CachesOnDistinctParamsSeparately(t *testing.T) {
	backend := &fakeBackend{completeText: "ok"}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 1, time.Millisecond, nil)
	ctx := context.Background()
	msgs := []llmgateway.Message{{Role: "user", Content: "hi"}}

	_, err := gw.Complete(ctx, msgs, llmgateway.CompleteParams{Temperature: 0})
	require.NoError(t, err)
	_, err = gw.Complete(ctx, msgs, llmgateway.CompleteParams{Temperature: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.completeCalls)
}

func TestRerank_CachesIdenticalCall(t *testing.T) {
	backend := &fakeBackend{}
	gw := llmgateway.New(backend, newMemCache(), "test-model", 1, time.Millisecond, nil)
	ctx := context.Background()
	docs := []string{"a", "b", "c"}

	first, err := gw.Rerank(ctx, "query", docs, 2)
	require.NoError(t, err)
	second, err := gw.Rerank(ctx, "query", docs, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
