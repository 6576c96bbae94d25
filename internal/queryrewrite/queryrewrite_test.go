package queryrewrite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/queryrewrite"
)

func TestIsUnclear_FewerThanThreeTokens(t *testing.T) {
	assert.True(t, queryrewrite.IsUnclear("fee koto"))
}

func TestIsUnclear_PronounOnlyClause(t *testing.T) {
	assert.True(t, queryrewrite.IsUnclear("এটা কি"))
}

func TestIsUnclear_ClearQuestionIsNotUnclear(t *testing.T) {
	assert.False(t, queryrewrite.IsUnclear("কুয়েট ভর্তি পরীক্ষার তারিখ কবে?"))
}

func TestIsUnclear_FillerWordsStrippedLeavesFewSubstantiveTokens(t *testing.T) {
	assert.True(t, queryrewrite.IsUnclear("ভাই প্লিজ বলেন তো"))
}

// failingBackend fails every call with an unclassified error, which the
// gateway surfaces as a permanent failure without retrying.
type failingBackend struct{}

func (failingBackend) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("unavailable")
}

func (failingBackend) Complete(_ context.Context, _ []llmgateway.Message, _ llmgateway.CompleteParams) (llmgateway.CompleteResult, error) {
	return llmgateway.CompleteResult{}, errors.New("unavailable")
}

func (failingBackend) Rerank(_ context.Context, _ string, _ []string, _ int) ([]llmgateway.RerankResult, error) {
	return nil, errors.New("unavailable")
}

func TestRewrite_ReturnsOriginalOnGatewayFailure(t *testing.T) {
	gw := llmgateway.New(failingBackend{}, nil, "rewrite-model", 1, time.Millisecond, nil)
	result := queryrewrite.Rewrite(context.Background(), gw, "eta ki?")
	assert.Equal(t, "eta ki?", result)
}
