// Package orchestrator runs the multi-entity retrieval fan-out of
// spec.md §4.13: one bounded-parallel retrieval pass per detected
// institution, each independent, fused, filtered, deduplicated, and
// coverage-stamped before handoff to answer synthesis.
package orchestrator

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/circularqa/coreqa/internal/decompose"
	"github.com/circularqa/coreqa/internal/expand"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/retrieval"
)

// maxParallel bounds the worker pool width, per spec.md §4.13 ("thread
// pool sized min(|subs|, 4)").
const maxParallel = 4

// EntityResult is one institution's retrieval outcome: its sub-query, the
// documents that survived filtering/dedup/truncation, and a coverage flag
// for downstream synthesis/reference emission.
type EntityResult struct {
	Abbrev        string
	FullName      string
	SubQuery      string
	Documents     []retrieval.Document
	LowCoverage   bool
}

// Dependencies bundles the per-entity retrieval stages the orchestrator
// drives. FilterRules maps an abbreviation to its non-strict university
// filter rule.
type Dependencies struct {
	Dense       *retrieval.DenseRetriever
	Lexical     *retrieval.LexicalRetriever
	FilterRules map[string]models.EntityFilterRule
	// Content resolves a passage id to its text; the orchestrator needs
	// this for university filtering, schedule-date prioritization, and
	// Jaccard dedup, none of which the id/score lists alone carry.
	Content map[string]string
}

// Run takes the already-decomposed per-entity sub-queries, retrieves each
// one in parallel (bounded to maxParallel), and returns one EntityResult
// per sub-query. results[i] always belongs to subQueries[i]; completion
// order across entities carries no meaning.
func Run(ctx context.Context, deps Dependencies, subQueries []decompose.SubQuery, intent models.Intent) ([]EntityResult, error) {
	results := make([]EntityResult, len(subQueries))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallel)

	for i, sq := range subQueries {
		i, sq := i, sq
		group.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			result, err := runOne(gctx, deps, sq, intent)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runOne(ctx context.Context, deps Dependencies, sq decompose.SubQuery, intent models.Intent) (EntityResult, error) {
	expanded := expand.Expand(sq.Query, intent)

	dense, err := deps.Dense.Search(ctx, expanded)
	if err != nil {
		return EntityResult{}, err
	}

	select {
	case <-ctx.Done():
		return EntityResult{}, ctx.Err()
	default:
	}

	var fused models.ScoredList
	if usesLexicalAugmentation(intent) && deps.Lexical != nil {
		lexical := deps.Lexical.Search(expanded)
		fused = retrieval.ReciprocalRankFusion(dense, lexical)
	} else {
		fused = dense
	}

	docs := toDocuments(fused, deps.Content)
	if rule, ok := deps.FilterRules[sq.Abbrev]; ok {
		docs = retrieval.FilterByUniversity(docs, rule)
	}

	if intent == models.IntentDate {
		docs = prioritizeSchedule(docs)
	}

	docs = dedupeJaccard(docs, 0.85)
	if len(docs) > 12 {
		docs = docs[:12]
	}

	return EntityResult{
		Abbrev:      sq.Abbrev,
		FullName:    sq.FullName,
		SubQuery:    sq.Query,
		Documents:   docs,
		LowCoverage: len(docs) < 3,
	}, nil
}

func usesLexicalAugmentation(intent models.Intent) bool {
	switch intent {
	case models.IntentDate, models.IntentFee, models.IntentAdmitCard:
		return true
	default:
		return false
	}
}

func toDocuments(list models.ScoredList, content map[string]string) []retrieval.Document {
	out := make([]retrieval.Document, len(list))
	for i, item := range list {
		out[i] = retrieval.Document{ID: item.ID, Score: item.Score, Content: content[item.ID]}
	}
	return out
}

var (
	scheduleBengaliPhrase = regexp.MustCompile(`ভর্তি পরীক্ষার তারিখ ও সময়`)
	bengaliDigitDate      = regexp.MustCompile(`[০-৯]{1,2}\s*(/|-|,)\s*[০-৯]{1,2}`)
)

// prioritizeSchedule re-sorts docs by (priority, score): passages that
// match schedule-table vocabulary or explicit Bengali-numeral date
// patterns are boosted ahead of everything else, per spec.md §4.13.
func prioritizeSchedule(docs []retrieval.Document) []retrieval.Document {
	priority := func(d retrieval.Document) int {
		if scheduleBengaliPhrase.MatchString(d.Content) || bengaliDigitDate.MatchString(d.Content) {
			return 1
		}
		return 0
	}
	sorted := make([]retrieval.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := priority(sorted[i]), priority(sorted[j])
		if pi != pj {
			return pi > pj
		}
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// dedupeJaccard drops later documents whose first-500-character shingle
// set overlaps an earlier kept document's by >= threshold, per spec.md
// §4.13.
func dedupeJaccard(docs []retrieval.Document, threshold float64) []retrieval.Document {
	var kept []retrieval.Document
	var keptShingles []map[string]bool
	for _, d := range docs {
		shingles := shingleSet(prefix(d.Content, 500))
		duplicate := false
		for _, existing := range keptShingles {
			if jaccard(shingles, existing) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, d)
			keptShingles = append(keptShingles, shingles)
		}
	}
	return kept
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shingleSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
