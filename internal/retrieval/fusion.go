package retrieval

import (
	"sort"

	"github.com/circularqa/coreqa/internal/models"
)

// rrfK is the Reciprocal Rank Fusion damping constant of spec.md §4.10.
const rrfK = 60

// ReciprocalRankFusion fuses multiple ranked lists into one: each list
// contributes 1/(k+rank) per id it contains (rank is 1-based), summed
// across lists, sorted descending with ties broken by the best original
// score any input list assigned that id.
func ReciprocalRankFusion(lists ...models.ScoredList) models.ScoredList {
	scores := make(map[string]float64)
	bestOriginal := make(map[string]float64)

	for _, list := range lists {
		for rank, item := range list {
			scores[item.ID] += 1.0 / float64(rrfK+rank+1)
			if item.Score > bestOriginal[item.ID] {
				bestOriginal[item.ID] = item.Score
			}
		}
	}

	out := make(models.ScoredList, 0, len(scores))
	for id, score := range scores {
		out = append(out, models.Scored{ID: id, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return bestOriginal[out[i].ID] > bestOriginal[out[j].ID]
	})
	return out
}

// AdaptiveFusion blends PPR and DPR result lists for the single-entity
// path, per spec.md §4.10. factConfidence (the max score among selected
// facts, in [0,1]) shifts weight toward PPR as it rises toward 1 and
// toward DPR as it falls toward 0. Passages missing from either list
// default to a zero contribution from that list.
func AdaptiveFusion(ppr, dpr models.ScoredList, factConfidence float64) models.ScoredList {
	if factConfidence < 0 {
		factConfidence = 0
	}
	if factConfidence > 1 {
		factConfidence = 1
	}
	pprWeight := factConfidence
	dprWeight := 1 - factConfidence

	pprByID := make(map[string]float64, len(ppr))
	for _, p := range ppr {
		pprByID[p.ID] = p.Score
	}
	dprByID := make(map[string]float64, len(dpr))
	for _, p := range dpr {
		dprByID[p.ID] = p.Score
	}

	ids := make(map[string]bool, len(ppr)+len(dpr))
	for _, p := range ppr {
		ids[p.ID] = true
	}
	for _, p := range dpr {
		ids[p.ID] = true
	}

	out := make(models.ScoredList, 0, len(ids))
	for id := range ids {
		blended := pprWeight*pprByID[id] + dprWeight*dprByID[id]
		out = append(out, models.Scored{ID: id, Score: blended})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
