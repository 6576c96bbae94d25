package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/circularqa/coreqa/internal/pipelineerr"
)

// OllamaBackend implements Backend against a local Ollama server via its
// official client. It backs the "fallback local model" endpoint of
// spec.md §4.1, so synthesis and reasoning can degrade to an on-box model
// when the remote providers are unavailable, without the core hard-coding
// which provider is "the" fallback — selection is configuration-only.
type OllamaBackend struct {
	client *api.Client
	model  string
}

// NewOllamaBackend builds a backend pointed at baseURL (e.g.
// "http://localhost:11434") for model.
func NewOllamaBackend(baseURL, model string) (*OllamaBackend, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url %q: %w", baseURL, err)
	}
	return &OllamaBackend{client: api.NewClient(parsed, http.DefaultClient), model: model}, nil
}

func (b *OllamaBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.Embed(ctx, &api.EmbedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, classifyOllamaErr("embed", err)
	}
	return resp.Embeddings, nil
}

func (b *OllamaBackend) Complete(ctx context.Context, messages []Message, params CompleteParams) (CompleteResult, error) {
	model := b.model
	if params.Model != "" {
		model = params.Model
	}

	chatMessages := make([]api.Message, len(messages))
	for i, m := range messages {
		chatMessages[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	options := map[string]any{}
	if params.Temperature != 0 {
		options["temperature"] = params.Temperature
	}
	if params.Seed != 0 {
		options["seed"] = params.Seed
	}
	if params.MaxTokens > 0 {
		options["num_predict"] = params.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{Model: model, Messages: chatMessages, Stream: &stream, Options: options}

	var final api.ChatResponse
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return CompleteResult{}, classifyOllamaErr("complete", err)
	}
	return CompleteResult{
		Text:     final.Message.Content,
		Metadata: map[string]any{"model": model, "done_reason": final.DoneReason},
	}, nil
}

// Rerank is not offered by Ollama's chat/embed API surface.
func (b *OllamaBackend) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	return nil, pipelineerr.NewPermanent("rerank", errors.New("ollama backend does not implement rerank"))
}

func classifyOllamaErr(op string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
			return pipelineerr.NewTransient(op, err)
		}
		return pipelineerr.NewPermanent(op, err)
	}
	return pipelineerr.NewTransient(op, err)
}
