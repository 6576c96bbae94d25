// Package llmgateway provides the uniform embed/complete/rerank interface
// of spec.md §4.1: a capability interface replacing duck-typed model
// gateways, wrapping every call in a content-addressed cache, bounded
// retry-with-backoff, and a typed transient/permanent error split.
package llmgateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/circularqa/coreqa/internal/pipelineerr"
	"github.com/sirupsen/logrus"
)

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompleteParams controls a Complete call. Seed and Temperature participate
// in the cache key, per spec.md §4.1 ("deterministic-cacheable keyed on
// (model, seed, temperature, messages)").
type CompleteParams struct {
	Model       string
	Seed        int64
	Temperature float64
	MaxTokens   int
}

// CompleteResult is a chat completion's text plus provider metadata.
type CompleteResult struct {
	Text     string
	Metadata map[string]any
}

// RerankResult pairs a document's original index with its rerank score.
type RerankResult struct {
	Index int
	Score float64
}

// Backend is the capability a concrete provider client implements: the raw,
// uncached, unretried call. Gateway wraps a Backend with caching, retry,
// and error classification.
type Backend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Complete(ctx context.Context, messages []Message, params CompleteParams) (CompleteResult, error)
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}

// Cache is the content-addressed on-disk cache every Gateway wraps. It
// must survive process restarts. See cache.go for the SQLite
// implementation backing spec.md §6's `(key, message, metadata)` schema.
type Cache interface {
	Get(ctx context.Context, key string) (message string, metadata string, ok bool, err error)
	Set(ctx context.Context, key, message, metadata string) error
}

// Gateway is what the rest of the core depends on: embed/complete/rerank,
// each cached and retried, per spec.md §4.1.
type Gateway struct {
	backend    Backend
	cache      Cache
	maxRetries int
	backoff    time.Duration
	logger     *logrus.Logger
	modelName  string
}

// New builds a Gateway around backend, caching responses in cache.
func New(backend Backend, cache Cache, modelName string, maxRetries int, backoff time.Duration, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Gateway{backend: backend, cache: cache, modelName: modelName, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

// Embed batch-embeds texts. Embeddings are deterministic per input text, so
// each text is cached individually keyed on (model, text).
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missingIdx := make([]int, 0, len(texts))
	missingTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		key := g.embedKey(t)
		if g.cache != nil {
			if cached, _, ok, _ := g.cache.Get(ctx, key); ok {
				var vec []float32
				if err := json.Unmarshal([]byte(cached), &vec); err == nil {
					out[i] = vec
					continue
				}
			}
		}
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, t)
	}

	if len(missingTexts) == 0 {
		return out, nil
	}

	vectors, err := g.withRetry(ctx, "embed", func() (any, error) {
		return g.backend.Embed(ctx, missingTexts)
	})
	if err != nil {
		return nil, err
	}
	fresh := vectors.([][]float32)
	for i, v := range fresh {
		idx := missingIdx[i]
		out[idx] = v
		if g.cache != nil {
			if data, err := json.Marshal(v); err == nil {
				_ = g.cache.Set(ctx, g.embedKey(missingTexts[i]), string(data), "")
			}
		}
	}
	return out, nil
}

// Complete runs a chat completion, cached on (model, seed, temperature, messages).
func (g *Gateway) Complete(ctx context.Context, messages []Message, params CompleteParams) (CompleteResult, error) {
	key := g.completeKey(messages, params)
	if g.cache != nil {
		if text, metadata, ok, _ := g.cache.Get(ctx, key); ok {
			var meta map[string]any
			_ = json.Unmarshal([]byte(metadata), &meta)
			return CompleteResult{Text: text, Metadata: meta}, nil
		}
	}

	result, err := g.withRetry(ctx, "complete", func() (any, error) {
		return g.backend.Complete(ctx, messages, params)
	})
	if err != nil {
		return CompleteResult{}, err
	}
	res := result.(CompleteResult)
	if g.cache != nil {
		metaJSON, _ := json.Marshal(res.Metadata)
		_ = g.cache.Set(ctx, key, res.Text, string(metaJSON))
	}
	return res, nil
}

// Rerank scores (query, document) pairs and returns the top_k, cached on
// (model, query, documents).
func (g *Gateway) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	key := g.rerankKey(query, documents, topK)
	if g.cache != nil {
		if cached, _, ok, _ := g.cache.Get(ctx, key); ok {
			var res []RerankResult
			if err := json.Unmarshal([]byte(cached), &res); err == nil {
				return res, nil
			}
		}
	}

	result, err := g.withRetry(ctx, "rerank", func() (any, error) {
		return g.backend.Rerank(ctx, query, documents, topK)
	})
	if err != nil {
		return nil, err
	}
	res := result.([]RerankResult)
	if g.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = g.cache.Set(ctx, key, string(data), "")
		}
	}
	return res, nil
}

// withRetry retries transient failures up to maxRetries with fixed
// backoff; permanent failures surface immediately, per spec.md §7.
// Retries bypass cache writes on failure but the cache is only consulted
// once, by the caller, before entering this loop — so reads remain
// consistent with "retries accept cache reads".
func (g *Gateway) withRetry(ctx context.Context, op string, call func() (any, error)) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if pipelineerr.IsPermanent(err) {
			return nil, err
		}
		if !pipelineerr.IsTransient(err) {
			// Unclassified backend error: treat as permanent, per the
			// "surface immediately" default for anything the backend
			// didn't explicitly mark retryable.
			return nil, pipelineerr.NewPermanent(op, err)
		}
		g.logger.WithFields(logrus.Fields{"op": op, "attempt": attempt}).Warn("llmgateway: transient error, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.backoff):
		}
	}
	return nil, pipelineerr.NewTransient(op, fmt.Errorf("exhausted %d retries: %w", g.maxRetries, lastErr))
}

func (g *Gateway) embedKey(text string) string {
	return hashKey("embed", g.modelName, text)
}

func (g *Gateway) completeKey(messages []Message, params CompleteParams) string {
	data, _ := json.Marshal(struct {
		Messages []Message
		Params   CompleteParams
	}{messages, params})
	return hashKey("complete", g.modelName, string(data))
}

func (g *Gateway) rerankKey(query string, documents []string, topK int) string {
	data, _ := json.Marshal(struct {
		Query     string
		Documents []string
		TopK      int
	}{query, documents, topK})
	return hashKey("rerank", g.modelName, string(data))
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
