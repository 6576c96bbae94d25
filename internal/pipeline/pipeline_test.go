package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circularqa/coreqa/internal/bm25"
	"github.com/circularqa/coreqa/internal/cache"
	"github.com/circularqa/coreqa/internal/embedstore"
	"github.com/circularqa/coreqa/internal/graph"
	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/pipeline"
	"github.com/circularqa/coreqa/internal/retrieval"
)

// constVectorGateway hands back a fixed unit vector for every text, so
// dense retrieval degenerates to "every passage equally similar" —
// sufficient for exercising control flow without a real embedding model.
type constVectorGateway struct{}

func (constVectorGateway) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// scriptedBackend answers Complete with whatever scriptedText is set to,
// regardless of input; Rerank passes candidates through unscored order.
type scriptedBackend struct {
	scriptedText string
}

func (b *scriptedBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (b *scriptedBackend) Complete(_ context.Context, _ []llmgateway.Message, _ llmgateway.CompleteParams) (llmgateway.CompleteResult, error) {
	return llmgateway.CompleteResult{Text: b.scriptedText}, nil
}

func (b *scriptedBackend) Rerank(_ context.Context, _ string, documents []string, topK int) ([]llmgateway.RerankResult, error) {
	out := make([]llmgateway.RerankResult, 0, len(documents))
	for i := range documents {
		out = append(out, llmgateway.RerankResult{Index: i, Score: float64(len(documents) - i)})
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

type noopCache struct{}

func (noopCache) Get(_ context.Context, _ string) (string, string, bool, error) { return "", "", false, nil }
func (noopCache) Set(_ context.Context, _, _, _ string) error                  { return nil }

func newGateway(text string) *llmgateway.Gateway {
	return llmgateway.New(&scriptedBackend{scriptedText: text}, noopCache{}, "test-model", 1, time.Millisecond, nil)
}

func disabledResponseCache() *cache.ResponseCache {
	return cache.NewResponseCache("127.0.0.1:1", 0, time.Minute)
}

func buildController(t *testing.T, answerText string, passages []models.Passage, filterRules map[string]models.EntityFilterRule) *pipeline.Controller {
	t.Helper()
	ctx := context.Background()

	store := embedstore.NewMemoryStore()
	for _, p := range passages {
		require.NoError(t, store.Upsert(ctx, p.ID, []float32{1, 0}))
	}
	dense := retrieval.NewDenseRetriever(constVectorGateway{}, store)

	idx := bm25.Build(passages)
	lexical := retrieval.NewLexicalRetriever(idx)

	g, err := graph.NewBuilder().Build()
	require.NoError(t, err)

	factStore := embedstore.NewMemoryStore()
	factMatcher := retrieval.NewFactMatcher(constVectorGateway{}, factStore, newGateway(`{"fact": []}`), nil, 10, 5)

	passageMap := make(map[string]models.Passage, len(passages))
	for _, p := range passages {
		passageMap[p.ID] = p
	}

	cfg := pipeline.Config{
		RetrievalTopK:     5,
		LinkingTopK:       10,
		MinDocsStrict:     1,
		ReferenceMinScore: 0,
		MultiRefMinScore:  0,
		DampingFactor:     0.85,
		PassageNodeWeight: 0.5,
	}

	answerGW := newGateway(answerText)
	return pipeline.New(cfg, g, passageMap, filterRules, dense, lexical, factMatcher,
		newGateway(""), newGateway(""), answerGW, newGateway(""),
		disabledResponseCache(), nil)
}

func TestAsk_CoachingQueryShortCircuits(t *testing.T) {
	c := buildController(t, "unused", nil, nil)
	resp, err := c.Ask(context.Background(), "উদ্ভাস ব্যাচের খরচ কত?", "")
	require.NoError(t, err)
	assert.True(t, resp.NotFound)
	assert.Contains(t, resp.Answer, "udvash.com")
}

func TestAsk_SingleEntityQuestionReturnsGroundedAnswer(t *testing.T) {
	passages := []models.Passage{
		models.NewPassage("[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] ভর্তি ফি ১০০০ টাকা।"),
	}
	c := buildController(t, "ভর্তি ফি ১০০০ টাকা।", passages, nil)

	resp, err := c.Ask(context.Background(), "কুয়েট ভর্তি ফি কত?", "")
	require.NoError(t, err)
	assert.False(t, resp.NotFound)
	assert.Equal(t, "ভর্তি ফি ১০০০ টাকা।", resp.Answer)
}

func TestAsk_MultiEntityQuestionFansOutAcrossInstitutions(t *testing.T) {
	passages := []models.Passage{
		models.NewPassage("[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] ভর্তি ফি ১০০০ টাকা।"),
		models.NewPassage("[রাজশাহী প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় RUET] ভর্তি ফি ১২০০ টাকা।"),
	}
	c := buildController(t, "KUET ১০০০ টাকা, RUET ১২০০ টাকা।", passages, nil)

	resp, err := c.Ask(context.Background(), "KUET RUET ভর্তি ফি কত কত?", "")
	require.NoError(t, err)
	assert.False(t, resp.NotFound)
	assert.Equal(t, "KUET ১০০০ টাকা, RUET ১২০০ টাকা।", resp.Answer)
}

func TestAsk_ExplicitNotFoundAnswerIsFlagged(t *testing.T) {
	passages := []models.Passage{
		models.NewPassage("[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] ভর্তি তথ্য।"),
	}
	c := buildController(t, "তথ্য পাওয়া যায়নি", passages, nil)

	resp, err := c.Ask(context.Background(), "কুয়েট এর ক্যাফেটেরিয়ার মেনু কি?", "")
	require.NoError(t, err)
	assert.True(t, resp.NotFound)
}

func TestAsk_UniversityDisambiguationFilterAppliesForSingleEntity(t *testing.T) {
	passages := []models.Passage{
		models.NewPassage("[খুলনা বিশ্ববিদ্যালয় KU] আসন সংখ্যা ৫০০।"),
		models.NewPassage("[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] আসন সংখ্যা ৮০০।"),
	}
	rule := models.EntityFilterRule{
		Abbrev:         "KU",
		MustContain:    []string{"[খুলনা বিশ্ববিদ্যালয় KU]"},
		MustNotContain: []string{"KUET"},
	}
	c := buildController(t, "৫০০ আসন", passages, map[string]models.EntityFilterRule{"KU": rule})

	resp, err := c.Ask(context.Background(), "খুবি তে আসন সংখ্যা কত?", "")
	require.NoError(t, err)
	assert.False(t, resp.NotFound)
	for _, ref := range resp.References {
		assert.NotContains(t, ref.Content, "KUET")
	}
}

func TestAsk_RepeatedQuestionWithDisabledResponseCache(t *testing.T) {
	// The response cache is disabled (unreachable Redis) in this fixture,
	// so this only confirms Ask tolerates a disabled cache on both the
	// read and write path without erroring.
	passages := []models.Passage{
		models.NewPassage("[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] ভর্তি ফি ১০০০ টাকা।"),
	}
	c := buildController(t, "ভর্তি ফি ১০০০ টাকা।", passages, nil)

	first, err := c.Ask(context.Background(), "কুয়েট ভর্তি ফি কত?", "")
	require.NoError(t, err)
	second, err := c.Ask(context.Background(), "কুয়েট ভর্তি ফি কত?", "")
	require.NoError(t, err)
	assert.Equal(t, first.Answer, second.Answer)
}
