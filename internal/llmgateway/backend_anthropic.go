package llmgateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/circularqa/coreqa/internal/pipelineerr"
)

// AnthropicBackend implements Backend against the Anthropic Messages API.
// It is the reasoning-model backend: OpenIE-adjacent NER, query
// decomposition, and fact-filter prompting (spec.md §4.1's "fast/cheap
// reasoning model" role).
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicBackend builds a backend for apiKey and model.
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Embed is not offered by Anthropic; the reasoning backend is never used
// for embedding (spec.md §4.1 selects a distinct embedding endpoint).
func (b *AnthropicBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, pipelineerr.NewPermanent("embed", errors.New("anthropic backend does not support embeddings"))
}

func (b *AnthropicBackend) Complete(ctx context.Context, messages []Message, params CompleteParams) (CompleteResult, error) {
	var system string
	msgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	model := b.model
	if params.Model != "" {
		model = anthropic.Model(params.Model)
	}
	maxTokens := int64(1024)
	if params.MaxTokens > 0 {
		maxTokens = int64(params.MaxTokens)
	}

	req := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if params.Temperature != 0 {
		req.Temperature = anthropic.Float(params.Temperature)
	}

	resp, err := b.client.Messages.New(ctx, req)
	if err != nil {
		return CompleteResult{}, classifyAnthropicErr("complete", err)
	}
	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return CompleteResult{
		Text: text,
		Metadata: map[string]any{
			"model":       string(resp.Model),
			"stop_reason": string(resp.StopReason),
		},
	}, nil
}

// Rerank is not offered by Anthropic; every call returns a permanent error.
func (b *AnthropicBackend) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	return nil, pipelineerr.NewPermanent("rerank", errors.New("anthropic backend does not implement a native rerank endpoint"))
}

func classifyAnthropicErr(op string, err error) error {
	var apiErr *anthropic.Error
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
