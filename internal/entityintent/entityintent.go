// Package entityintent classifies a raw query into the universities it
// references and the intent it expresses, plus a coaching-center
// short-circuit check. Every function here is pure: no I/O, no LLM calls,
// just ordered rule tables evaluated over the query string.
package entityintent

import (
	"regexp"
	"strings"

	"github.com/circularqa/coreqa/internal/models"
)

// entityRule is one row of the ordered institution table. Bengali matching
// is substring-based; English matching uses word boundaries, since
// word-boundary regexes are unreliable over Bengali script (no discrete
// word-boundary characters between conjunct clusters).
type entityRule struct {
	Abbrev           string
	FullName         string
	BengaliSubstrs   []string
	EnglishPattern   *regexp.Regexp
}

// entityRules is declaration-ordered, with more specific abbreviations
// before their prefixes (e.g. "kuet" before "ku"). Every matching rule
// contributes a result, in this order; the English patterns use word
// boundaries, so "kuet" alone does not also match the "ku" rule.
var entityRules = []entityRule{
	{
		Abbrev:         "KUET",
		FullName:       "খুলনা প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"কুয়েট", "খুলনা প্রকৌশল"},
		EnglishPattern: regexp.MustCompile(`(?i)\bkuet\b`),
	},
	{
		Abbrev:         "RUET",
		FullName:       "রাজশাহী প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"রুয়েট", "রাজশাহী প্রকৌশল"},
		EnglishPattern: regexp.MustCompile(`(?i)\bruet\b`),
	},
	{
		Abbrev:         "CUET",
		FullName:       "চট্টগ্রাম প্রকৌশল ও প্রযুক্তি বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"চুয়েট", "চট্টগ্রাম প্রকৌশল"},
		EnglishPattern: regexp.MustCompile(`(?i)\bcuet\b`),
	},
	{
		Abbrev:         "BUET",
		FullName:       "বাংলাদেশ প্রকৌশল বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"বুয়েট"},
		EnglishPattern: regexp.MustCompile(`(?i)\bbuet\b`),
	},
	{
		Abbrev:         "JNU",
		FullName:       "জাহাঙ্গীরনগর বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"জাবি", "জাহাঙ্গীরনগর"},
		EnglishPattern: regexp.MustCompile(`(?i)\bjnu\b`),
	},
	{
		Abbrev:         "JU",
		FullName:       "যশোর বিজ্ঞান ও প্রযুক্তি বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"যশোর বিজ্ঞান"},
		EnglishPattern: regexp.MustCompile(`(?i)\bjust\b`),
	},
	{
		Abbrev:         "KU",
		FullName:       "খুলনা বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"খুবি"},
		EnglishPattern: regexp.MustCompile(`(?i)\bku\b`),
	},
	{
		Abbrev:         "RU",
		FullName:       "রাজশাহী বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"রাবি"},
		EnglishPattern: regexp.MustCompile(`(?i)\bru\b`),
	},
	{
		Abbrev:         "CU",
		FullName:       "চট্টগ্রাম বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"চবি"},
		EnglishPattern: regexp.MustCompile(`(?i)\bcu\b`),
	},
	{
		Abbrev:         "DU",
		FullName:       "ঢাকা বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"ঢাবি"},
		EnglishPattern: regexp.MustCompile(`(?i)\bdu\b`),
	},
	{
		Abbrev:         "GST",
		FullName:       "জিএসটি গুচ্ছ বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"জিএসটি", "গুচ্ছ"},
		EnglishPattern: regexp.MustCompile(`(?i)\bgst\b`),
	},
	{
		Abbrev:         "BAU",
		FullName:       "বাংলাদেশ কৃষি বিশ্ববিদ্যালয়",
		BengaliSubstrs: []string{"বিএইউ", "কৃষি বিশ্ববিদ্যালয়"},
		EnglishPattern: regexp.MustCompile(`(?i)\bbau\b`),
	},
	{
		Abbrev:         "MEDICAL",
		FullName:       "মেডিকেল কলেজ ভর্তি",
		BengaliSubstrs: []string{"মেডিকেল", "মেডিক্যাল"},
		EnglishPattern: regexp.MustCompile(`(?i)\bmedical\b`),
	},
}

// DetectEntities returns the ordered, abbreviation-deduplicated list of
// institutions the query references.
func DetectEntities(query string) []models.EntityMatch {
	lower := strings.ToLower(query)
	seen := make(map[string]bool)
	var out []models.EntityMatch

	for _, rule := range entityRules {
		if seen[rule.Abbrev] {
			continue
		}
		matched := false
		for _, substr := range rule.BengaliSubstrs {
			if strings.Contains(query, substr) {
				matched = true
				break
			}
		}
		if !matched && rule.EnglishPattern != nil && rule.EnglishPattern.MatchString(lower) {
			matched = true
		}
		if matched {
			seen[rule.Abbrev] = true
			out = append(out, models.EntityMatch{Abbrev: rule.Abbrev, FullName: rule.FullName})
		}
	}
	return out
}

type intentRule struct {
	Intent         models.Intent
	BengaliSubstrs []string
	EnglishPattern *regexp.Regexp
}

// intentRules is priority-ordered: first match wins. Date-related
// vocabulary is checked before the more generic "exam" bucket so a query
// asking for an exam date classifies as date, not exam.
var intentRules = []intentRule{
	{
		Intent:         models.IntentDate,
		BengaliSubstrs: []string{"তারিখ", "সময়সূচী", "কবে", "কখন"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(date|schedule|when)\b|\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`),
	},
	{
		Intent:         models.IntentFee,
		BengaliSubstrs: []string{"ফি", "টাকা", "মূল্য", "খরচ"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(fee|fees|cost|price|taka)\b`),
	},
	{
		Intent:         models.IntentEligibility,
		BengaliSubstrs: []string{"যোগ্যতা", "জিপিএ", "নম্বর", "শর্ত"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(eligib\w*|gpa|qualif\w*|requirement)\b`),
	},
	{
		Intent:         models.IntentSeat,
		BengaliSubstrs: []string{"আসন", "সিট"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(seat|seats)\b`),
	},
	{
		Intent:         models.IntentAdmitCard,
		BengaliSubstrs: []string{"প্রবেশপত্র"},
		EnglishPattern: regexp.MustCompile(`(?i)\badmit\s*card\b`),
	},
	{
		Intent:         models.IntentWebsite,
		BengaliSubstrs: []string{"ওয়েবসাইট", "লিংক"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(website|link|url)\b`),
	},
	{
		Intent:         models.IntentExam,
		BengaliSubstrs: []string{"পরীক্ষা", "আবেদন"},
		EnglishPattern: regexp.MustCompile(`(?i)\b(exam|application|apply)\b`),
	},
}

// DetectIntent returns the first matching intent bucket, or IntentGeneral
// if nothing matches.
func DetectIntent(query string) models.Intent {
	lower := strings.ToLower(query)
	for _, rule := range intentRules {
		for _, substr := range rule.BengaliSubstrs {
			if strings.Contains(query, substr) {
				return rule.Intent
			}
		}
		if rule.EnglishPattern != nil && rule.EnglishPattern.MatchString(lower) {
			return rule.Intent
		}
	}
	return models.IntentGeneral
}

var coachingPattern = regexp.MustCompile(`(?i)\budvash\b|উদ্ভাস|\bunmesh\b|উন্মেষ|\brtc\b|আরটিসি`)

// IsCoachingQuery reports whether query is about a coaching-center brand,
// for which no corpus exists. The controller returns a canned response
// without invoking retrieval.
func IsCoachingQuery(query string) bool {
	return coachingPattern.MatchString(query)
}
