package llmgateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/circularqa/coreqa/internal/pipelineerr"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAIBackend implements Backend against any OpenAI-compatible endpoint
// (the answer model and the embedding model). It has no rerank support:
// Rerank always fails with a permanent error.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a backend pointed at baseURL (empty for the
// public OpenAI API) using apiKey and model.
func NewOpenAIBackend(baseURL, apiKey, model string) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{client: openai.NewClient(opts...), model: model}
}

func (b *OpenAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: b.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classifyOpenAIErr("embed", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, messages []Message, params CompleteParams) (CompleteResult, error) {
	chatMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			chatMessages = append(chatMessages, openai.SystemMessage(m.Content))
		case "assistant":
			chatMessages = append(chatMessages, openai.AssistantMessage(m.Content))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(m.Content))
		}
	}

	model := params.Model
	if model == "" {
		model = b.model
	}

	req := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: chatMessages,
	}
	if params.Temperature != 0 {
		req.Temperature = param.NewOpt(params.Temperature)
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = param.NewOpt(int64(params.MaxTokens))
	}
	if params.Seed != 0 {
		req.Seed = param.NewOpt(params.Seed)
	}

	resp, err := b.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return CompleteResult{}, classifyOpenAIErr("complete", err)
	}
	if len(resp.Choices) == 0 {
		return CompleteResult{}, pipelineerr.NewParse("complete", errors.New("openai: empty choices"))
	}
	return CompleteResult{
		Text: resp.Choices[0].Message.Content,
		Metadata: map[string]any{
			"model":         resp.Model,
			"finish_reason": resp.Choices[0].FinishReason,
		},
	}, nil
}

// Rerank has no dedicated OpenAI endpoint. It does not score documents
// through the completion model either: every call returns a permanent
// error, so a working reranker endpoint needs a Backend with native rerank.
func (b *OpenAIBackend) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	return nil, pipelineerr.NewPermanent("rerank", errors.New("openai backend does not implement a native rerank endpoint; configure a dedicated reranker endpoint"))
}

func classifyOpenAIErr(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return pipelineerr.NewTransient(op, err)
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
			return pipelineerr.NewPermanent(op, err)
		}
	}
	return pipelineerr.NewTransient(op, err)
}
