package graph

import (
	"math"
	"sort"

	"github.com/circularqa/coreqa/internal/models"
)

// SeedInputs carries what's needed to build a PPR seed vector per spec.md §4.9.
type SeedInputs struct {
	MatchedFacts []models.ScoredFact
	// ChunksContainingEntity optionally overrides the entity -> #chunks
	// count BuildSeed would otherwise read off the graph's own adjacency
	// (Graph.EntityChunkCount). Tests can supply this directly; production
	// callers can leave it nil.
	ChunksContainingEntity map[string]int
	DPRScores              models.ScoredList // passage_id -> DPR cosine score
	PassageNodeWeight      float64           // default 0.5
}

// BuildSeed constructs the non-negative seed vector over every vertex in g,
// per spec.md §4.9 steps 1-3: accumulate entity phrase weights from matched
// facts (mean of weighted_fact_score across occurrences), then add
// min-max-normalized, passage-node-weight-scaled DPR scores on passage
// nodes. NaN and negative entries are clamped to 0.
func BuildSeed(g *Graph, in SeedInputs) []float64 {
	n := g.NodeCount()
	seed := make([]float64, n)

	phraseWeights := make(map[int]float64)
	occurrences := make(map[int]int)
	for _, sf := range in.MatchedFacts {
		for _, entityName := range []string{sf.Fact.Subject, sf.Fact.Object} {
			idx, ok := g.EntityIndexByName(entityName)
			if !ok {
				continue
			}
			chunkCount, overridden := in.ChunksContainingEntity[entityName]
			if !overridden || chunkCount <= 0 {
				chunkCount = g.EntityChunkCount(entityName)
			}
			if chunkCount <= 0 {
				chunkCount = 1
			}
			weighted := sf.Score / float64(chunkCount)
			phraseWeights[idx] += weighted
			occurrences[idx]++
		}
	}
	for idx, total := range phraseWeights {
		count := occurrences[idx]
		if count == 0 {
			count = 1
		}
		seed[idx] = total / float64(count)
	}

	passageWeight := in.PassageNodeWeight
	if passageWeight <= 0 {
		passageWeight = 0.5
	}
	normalizedDPR := minMaxNormalize(in.DPRScores)
	for _, s := range normalizedDPR {
		idx, ok := g.IndexOf(s.ID)
		if !ok {
			continue
		}
		seed[idx] += s.Score * passageWeight
	}

	for i, v := range seed {
		if math.IsNaN(v) || v < 0 {
			seed[i] = 0
		}
	}
	return seed
}

func minMaxNormalize(list models.ScoredList) models.ScoredList {
	if len(list) == 0 {
		return nil
	}
	min, max := list[0].Score, list[0].Score
	for _, s := range list {
		if s.Score < min {
			min = s.Score
		}
		if s.Score > max {
			max = s.Score
		}
	}
	out := make(models.ScoredList, len(list))
	spread := max - min
	for i, s := range list {
		if spread <= 0 {
			out[i] = models.Scored{ID: s.ID, Score: 1}
			continue
		}
		out[i] = models.Scored{ID: s.ID, Score: (s.Score - min) / spread}
	}
	return out
}

// SeedIsZero reports whether every entry of seed is zero, in which case the
// controller should skip PPR and use DPR alone (use_dpr_only), per
// spec.md §4.9's invariant.
func SeedIsZero(seed []float64) bool {
	for _, v := range seed {
		if v != 0 {
			return false
		}
	}
	return true
}

// PersonalizedPageRank runs damped power-iteration PPR over g's undirected,
// edge-weighted adjacency, seeded by `seed`. It returns the stationary
// probability mass per node; mass sums to ~1 up to numerical noise, per
// spec.md §4.9's invariant. This replaces the prpack dependency with a
// direct power-iteration implementation (see DESIGN.md for why no pack
// library offers a pagerank primitive).
func PersonalizedPageRank(g *Graph, seed []float64, damping float64) []float64 {
	n := g.NodeCount()
	if n == 0 {
		return nil
	}
	if damping <= 0 || damping >= 1 {
		damping = 0.5
	}

	// Normalize the seed into a probability distribution; if it's all zero,
	// fall back to a uniform teleport distribution (callers should prefer
	// SeedIsZero to skip PPR entirely, but this keeps the function total).
	seedSum := 0.0
	for _, v := range seed {
		seedSum += v
	}
	teleport := make([]float64, n)
	if seedSum > 0 {
		for i, v := range seed {
			teleport[i] = v / seedSum
		}
	} else {
		uniform := 1.0 / float64(n)
		for i := range teleport {
			teleport[i] = uniform
		}
	}

	// Precompute per-node total outgoing weight for edge-weighted transition.
	outWeight := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, e := range g.Neighbors(i) {
			outWeight[i] += e.Weight
		}
	}

	rank := make([]float64, n)
	copy(rank, teleport)

	const maxIters = 100
	const tol = 1e-10
	next := make([]float64, n)
	for iter := 0; iter < maxIters; iter++ {
		for i := range next {
			next[i] = 0
		}
		danglingMass := 0.0
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				danglingMass += rank[i]
				continue
			}
			share := rank[i] / outWeight[i]
			for _, e := range g.Neighbors(i) {
				next[e.Index] += share * e.Weight
			}
		}
		diff := 0.0
		for i := 0; i < n; i++ {
			v := damping*next[i] + damping*danglingMass*teleport[i] + (1-damping)*teleport[i]
			diff += math.Abs(v - rank[i])
			next[i] = v
		}
		rank, next = next, rank
		if diff < tol {
			break
		}
	}

	// Renormalize defensively so mass sums to exactly 1 despite fp drift.
	sum := 0.0
	for _, v := range rank {
		sum += v
	}
	if sum > 0 {
		for i := range rank {
			rank[i] /= sum
		}
	}
	return rank
}

// PassageScores extracts per-passage PageRank mass into a models.ScoredList,
// sorted descending by score, aligned with the passage index.
func PassageScores(g *Graph, rank []float64) models.ScoredList {
	indices := g.PassageIndices()
	out := make(models.ScoredList, len(indices))
	for i, idx := range indices {
		out[i] = models.Scored{ID: g.NodeAt(idx).HashID, Score: rank[idx]}
	}
	SortDescending(out)
	return out
}

// SortDescending sorts a ScoredList by Score descending, using a stable
// sort so ties preserve their original relative order.
func SortDescending(list models.ScoredList) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
}
