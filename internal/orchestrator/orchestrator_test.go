package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circularqa/coreqa/internal/bm25"
	"github.com/circularqa/coreqa/internal/decompose"
	"github.com/circularqa/coreqa/internal/embedstore"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/orchestrator"
	"github.com/circularqa/coreqa/internal/retrieval"
)

type constVectorGateway struct{}

func (constVectorGateway) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func buildDense(t *testing.T, ids []string) *retrieval.DenseRetriever {
	t.Helper()
	store := embedstore.NewMemoryStore()
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, store.Upsert(ctx, id, []float32{1, 0}))
	}
	return retrieval.NewDenseRetriever(constVectorGateway{}, store)
}

func TestRun_ReturnsOneResultPerSubQueryInOrder(t *testing.T) {
	dense := buildDense(t, []string{"p1", "p2"})
	content := map[string]string{
		"p1": "[Khulna University of Engineering & Technology KUET] ভর্তি তথ্য বিষয় ১",
		"p2": "[Rajshahi University of Engineering & Technology RUET] ভর্তি তথ্য বিষয় ২",
	}
	deps := orchestrator.Dependencies{Dense: dense, Content: content}
	subQueries := []decompose.SubQuery{
		{Abbrev: "KUET", FullName: "Khulna University of Engineering & Technology", Query: "fee koto"},
		{Abbrev: "RUET", FullName: "Rajshahi University of Engineering & Technology", Query: "fee koto"},
	}

	results, err := orchestrator.Run(context.Background(), deps, subQueries, models.IntentGeneral)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "KUET", results[0].Abbrev)
	assert.Equal(t, "RUET", results[1].Abbrev)
}

func TestRun_FlagsLowCoverageWhenFewerThanThreeDocs(t *testing.T) {
	dense := buildDense(t, []string{"p1"})
	content := map[string]string{"p1": "[KUET] একটি মাত্র প্যাসেজ"}
	deps := orchestrator.Dependencies{Dense: dense, Content: content}
	subQueries := []decompose.SubQuery{
		{Abbrev: "KUET", FullName: "Khulna University of Engineering & Technology", Query: "fee koto"},
	}

	results, err := orchestrator.Run(context.Background(), deps, subQueries, models.IntentGeneral)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].LowCoverage)
}

func TestRun_AppliesUniversityFilterRule(t *testing.T) {
	dense := buildDense(t, []string{"p1", "p2"})
	content := map[string]string{
		"p1": "[খুলনা বিশ্ববিদ্যালয় KU] আসন সংখ্যা ৫০০",
		"p2": "[খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয় KUET] আসন সংখ্যা ৮০০",
	}
	rule := models.EntityFilterRule{
		Abbrev:         "KU",
		MustContain:    []string{"[খুলনা বিশ্ববিদ্যালয় KU]"},
		MustNotContain: []string{"KUET"},
	}
	deps := orchestrator.Dependencies{
		Dense:       dense,
		Content:     content,
		FilterRules: map[string]models.EntityFilterRule{"KU": rule},
	}
	subQueries := []decompose.SubQuery{
		{Abbrev: "KU", FullName: "University of Khulna", Query: "আসন সংখ্যা"},
	}

	results, err := orchestrator.Run(context.Background(), deps, subQueries, models.IntentGeneral)
	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, d := range results[0].Documents {
		assert.NotContains(t, d.Content, "KUET")
	}
}

func TestRun_MixesInLexicalResultsForDateIntent(t *testing.T) {
	dense := buildDense(t, []string{"p1"})
	passages := []models.Passage{
		{ID: "p1", Content: "ভর্তি পরীক্ষার তারিখ ও সময় ১২-০৪-২০২৬"},
		{ID: "p2", Content: "ভর্তি পরীক্ষার তারিখ ও সময় ২০-০৫-২০২৬"},
	}
	idx := bm25.Build(passages)
	lexical := retrieval.NewLexicalRetriever(idx)
	content := map[string]string{
		"p1": passages[0].Content,
		"p2": passages[1].Content,
	}
	deps := orchestrator.Dependencies{Dense: dense, Lexical: lexical, Content: content}
	subQueries := []decompose.SubQuery{
		{Abbrev: "KUET", FullName: "Khulna University of Engineering & Technology", Query: "তারিখ"},
	}

	results, err := orchestrator.Run(context.Background(), deps, subQueries, models.IntentDate)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Documents)
}
