package retrieval

import (
	"sort"
	"strings"

	"github.com/circularqa/coreqa/internal/models"
)

// Document pairs a passage id/content with the fused score it carries
// into filtering and reranking.
type Document struct {
	ID      string
	Content string
	Score   float64
}

func matchCount(content string, rule models.EntityFilterRule) (count int, hasMustNot bool) {
	lower := strings.ToLower(content)
	for _, marker := range rule.MustContain {
		if strings.Contains(lower, strings.ToLower(marker)) {
			count++
		}
	}
	for _, marker := range rule.MustNotContain {
		if strings.Contains(lower, strings.ToLower(marker)) {
			hasMustNot = true
			break
		}
	}
	return count, hasMustNot
}

// FilterByUniversity is the non-strict mode of spec.md §4.11: keep
// documents with ≥1 must_contain marker and no must_not_contain marker,
// re-ranked by (marker count, score). If filtering would remove every
// document, the original list is returned unchanged.
func FilterByUniversity(docs []Document, rule models.EntityFilterRule) []Document {
	type kept struct {
		doc   Document
		count int
	}
	var matched []kept
	for _, d := range docs {
		count, hasMustNot := matchCount(d.Content, rule)
		if count > 0 && !hasMustNot {
			matched = append(matched, kept{d, count})
		}
	}
	if len(matched) == 0 {
		return docs
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].count != matched[j].count {
			return matched[i].count > matched[j].count
		}
		return matched[i].doc.Score > matched[j].doc.Score
	})
	out := make([]Document, len(matched))
	for i, k := range matched {
		out[i] = k.doc
	}
	return out
}

// StrictUniversityFilter is the strict mode of spec.md §4.11: keep only
// documents with ≥1 matching marker. When at least minDocs survive, the
// matched set is returned as-is. Otherwise — for any abbreviation other
// than the coaching short-circuit, which never reaches this function —
// the strict pass is abandoned in favor of the unfiltered input's top
// minDocs, per §8's edge case: "for other abbreviations → fall back to
// unfiltered top-min_docs", so a university whose passages rarely carry
// its bracketed tag isn't starved to near-nothing.
func StrictUniversityFilter(docs []Document, rule models.EntityFilterRule, minDocs int) []Document {
	var matched []Document
	for _, d := range docs {
		count, hasMustNot := matchCount(d.Content, rule)
		if count > 0 && !hasMustNot {
			matched = append(matched, d)
		}
	}
	if len(matched) >= minDocs {
		return matched
	}
	fallbackN := minDocs
	if fallbackN > len(docs) {
		fallbackN = len(docs)
	}
	return docs[:fallbackN]
}
