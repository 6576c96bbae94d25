// Package notfound classifies a question into a not-found category and
// returns the matching canned Bengali template, per spec.md §4.15.
package notfound

import (
	"regexp"
	"strings"
)

// Category is one of the dispatcher's fixed not-found buckets.
type Category string

const (
	CategoryUdvash           Category = "udvash"
	CategoryMedical          Category = "medical"
	CategoryEngineering      Category = "engineering"
	CategorySpecificUniversity Category = "specific_university"
	CategoryGSTCluster       Category = "gst_cluster"
	CategoryDefault          Category = "default"
)

var templates = map[Category]string{
	CategoryUdvash: "উদ্ভাস সংক্রান্ত সুনির্দিষ্ট তথ্য আমাদের সংগ্রহে নেই। বিস্তারিত জানতে উদ্ভাসের অফিসিয়াল ওয়েবসাইট দেখুন: https://udvash.com",
	CategoryMedical: "মেডিকেল ভর্তি সংক্রান্ত সুনির্দিষ্ট তথ্য পাওয়া যায়নি। বিস্তারিত জানতে দেখুন: http://dgme.gov.bd",
	CategoryEngineering: "প্রকৌশল বিশ্ববিদ্যালয় ভর্তি সংক্রান্ত সুনির্দিষ্ট তথ্য পাওয়া যায়নি। বিস্তারিত জানতে সংশ্লিষ্ট বিশ্ববিদ্যালয়ের ভর্তি ওয়েবসাইট দেখুন।",
	CategorySpecificUniversity: "আপনার উল্লেখিত বিশ্ববিদ্যালয়ের সুনির্দিষ্ট তথ্য আমাদের সংগ্রহে নেই। বিস্তারিত জানতে সংশ্লিষ্ট বিশ্ববিদ্যালয়ের ভর্তি ওয়েবসাইট দেখুন।",
	CategoryGSTCluster: "জিএসটি গুচ্ছ ভর্তি সংক্রান্ত সুনির্দিষ্ট তথ্য পাওয়া যায়নি। বিস্তারিত জানতে দেখুন: http://gstadmission.ac.bd",
	CategoryDefault: "দুঃখিত, আপনার প্রশ্নের উত্তর আমাদের সংগ্রহে পাওয়া যায়নি।",
}

var (
	udvashPattern      = regexp.MustCompile(`(?i)udvash|উদ্ভাস|unmesh|উন্মেষ`)
	medicalPattern     = regexp.MustCompile(`(?i)medical|মেডিকেল|মেডিক্যাল`)
	engineeringPattern = regexp.MustCompile(`(?i)\b(kuet|ruet|cuet|buet)\b|প্রকৌশল`)
	gstPattern         = regexp.MustCompile(`(?i)\bgst\b|জিএসটি|গুচ্ছ`)
	specificUniPattern = regexp.MustCompile(`(?i)\b(du|ru|cu|ju|jnu|ku)\b|বিশ্ববিদ্যালয়`)
)

// Classify returns the category a question belongs to for the purposes of
// selecting a not-found template.
func Classify(question string) Category {
	switch {
	case udvashPattern.MatchString(question):
		return CategoryUdvash
	case medicalPattern.MatchString(question):
		return CategoryMedical
	case engineeringPattern.MatchString(question):
		return CategoryEngineering
	case gstPattern.MatchString(question):
		return CategoryGSTCluster
	case specificUniPattern.MatchString(question):
		return CategorySpecificUniversity
	default:
		return CategoryDefault
	}
}

// Template returns the canned response for question's not-found category.
func Template(question string) string {
	return templates[Classify(question)]
}

// notFoundPhrases are curated, high-precision markers that the LLM itself
// emitted a not-found answer. The list favors English phrases and a small
// set of specific Bengali phrases, deliberately avoiding generic Bengali
// negation words (e.g. bare "না") that would false-positive on answers
// that merely contain a negation as part of a real fact.
var notFoundPhrases = []string{
	"তথ্য পাওয়া যায়নি",
	"উত্তর পাওয়া যায়নি",
	"সুনির্দিষ্ট তথ্য নেই",
	"i don't know",
	"i do not know",
	"no information",
	"not found in the context",
	"cannot find",
	"could not find",
}

// IsNotFoundAnswer reports whether answer matches one of the curated
// not-found phrases. Matching is plain substring search, so an answer that
// merely quotes one of these phrases is also reported as not-found.
func IsNotFoundAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(answer, phrase) || strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
