package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/retrieval"
)

func TestReciprocalRankFusion_MatchesFormula(t *testing.T) {
	listA := models.ScoredList{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}
	listB := models.ScoredList{{ID: "b", Score: 0.8}, {ID: "a", Score: 0.3}}

	fused := retrieval.ReciprocalRankFusion(listA, listB)

	scoreByID := make(map[string]float64)
	for _, r := range fused {
		scoreByID[r.ID] = r.Score
	}
	wantA := 1.0/61.0 + 1.0/62.0
	wantB := 1.0/62.0 + 1.0/61.0
	assert.InDelta(t, wantA, scoreByID["a"], 1e-9)
	assert.InDelta(t, wantB, scoreByID["b"], 1e-9)
}

func TestReciprocalRankFusion_SortedDescending(t *testing.T) {
	listA := models.ScoredList{{ID: "x", Score: 1}, {ID: "y", Score: 0.5}, {ID: "z", Score: 0.1}}
	fused := retrieval.ReciprocalRankFusion(listA)
	for i := 0; i < len(fused)-1; i++ {
		assert.GreaterOrEqual(t, fused[i].Score, fused[i+1].Score)
	}
}

func TestAdaptiveFusion_HighFactConfidenceFavorsPPR(t *testing.T) {
	ppr := models.ScoredList{{ID: "a", Score: 0.9}}
	dpr := models.ScoredList{{ID: "a", Score: 0.1}}

	fused := retrieval.AdaptiveFusion(ppr, dpr, 1.0)
	score, ok := fused.ByID("a")
	assert.True(t, ok)
	assert.InDelta(t, 0.9, score, 1e-9)
}

func TestAdaptiveFusion_LowFactConfidenceFavorsDPR(t *testing.T) {
	ppr := models.ScoredList{{ID: "a", Score: 0.9}}
	dpr := models.ScoredList{{ID: "a", Score: 0.1}}

	fused := retrieval.AdaptiveFusion(ppr, dpr, 0.0)
	score, ok := fused.ByID("a")
	assert.True(t, ok)
	assert.InDelta(t, 0.1, score, 1e-9)
}

func TestAdaptiveFusion_MissingScoreDefaultsToZero(t *testing.T) {
	ppr := models.ScoredList{{ID: "a", Score: 0.8}}
	dpr := models.ScoredList{{ID: "b", Score: 0.6}}

	fused := retrieval.AdaptiveFusion(ppr, dpr, 0.5)
	scoreA, _ := fused.ByID("a")
	scoreB, _ := fused.ByID("b")
	assert.InDelta(t, 0.4, scoreA, 1e-9)
	assert.InDelta(t, 0.3, scoreB, 1e-9)
}
