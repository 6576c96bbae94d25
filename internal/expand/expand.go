// Package expand appends dictionary-derived synonym terms onto a query
// before it reaches the dense/lexical retrievers.
package expand

import (
	"regexp"
	"strings"

	"github.com/circularqa/coreqa/internal/models"
)

// synonymDict maps a trigger term to the bundle of expansion terms that
// should be appended when it's found in the query. Latin keys match on
// word boundary; Bengali keys match on substring (see matches below).
var synonymDict = map[string][]string{
	"kuet":      {"খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়", "khulna university of engineering"},
	"ruet":      {"রাজশাহী প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়"},
	"cuet":      {"চট্টগ্রাম প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়"},
	"buet":      {"বাংলাদেশ প্রকৌশল বিশ্ববিদ্যালয়"},
	"gst":       {"জিএসটি গুচ্ছ", "guccho"},
	"fee":       {"ফি", "টাকা"},
	"admission": {"ভর্তি"},
	"তারিখ":     {"date", "schedule", "সময়সূচী"},
	"ফি":        {"fee", "টাকা"},
	"আসন":       {"seat", "সিট সংখ্যা"},
	"মানবিক":    {"অ-বিজ্ঞান শাখা", "humanities"},
}

// intentKeywords appends intent-specific terms regardless of dictionary
// hits, e.g. date intent adds schedule-table vocabulary that rarely
// appears verbatim in the user's question.
var intentKeywords = map[models.Intent][]string{
	models.IntentDate:      {"ভর্তি পরীক্ষার তারিখ ও সময়", "সময়সূচী"},
	models.IntentFee:       {"ভর্তি ফি", "আবেদন ফি"},
	models.IntentAdmitCard: {"প্রবেশপত্র ডাউনলোড"},
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > 0x2FF {
			return false
		}
	}
	return true
}

func containsTerm(query, term string) bool {
	if isLatin(term) {
		pattern := `(?i)\b` + regexp.QuoteMeta(term) + `\b`
		matched, err := regexp.MatchString(pattern, query)
		return err == nil && matched
	}
	return strings.Contains(query, term)
}

// Expand returns query concatenated with deduplicated expansion terms
// drawn from the synonym dictionary and the given intent's keyword
// bundle.
func Expand(query string, intent models.Intent) string {
	seen := make(map[string]bool)
	var extra []string

	addTerm := func(term string) {
		if seen[term] || strings.EqualFold(term, query) {
			return
		}
		seen[term] = true
		extra = append(extra, term)
	}

	for trigger, terms := range synonymDict {
		if containsTerm(query, trigger) {
			for _, t := range terms {
				addTerm(t)
			}
		}
	}
	for _, t := range intentKeywords[intent] {
		addTerm(t)
	}

	if strings.Contains(query, "মানবিক") || containsTerm(query, "non-science") {
		addTerm("অ-বিজ্ঞান শাখা")
	}

	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
