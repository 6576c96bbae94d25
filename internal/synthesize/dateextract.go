package synthesize

import (
	"regexp"

	"github.com/circularqa/coreqa/internal/retrieval"
)

// kuetRuetTablePattern matches the table-row date format KUET and RUET
// circulars share: a bare day/month/year triple on its own table cell,
// optionally followed by a weekday name.
var kuetRuetTablePattern = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})`)

// cuetProsePattern matches CUET's prose announcement style: "পরীক্ষা
// অনুষ্ঠিত হবে ২৫ অক্টোবর ২০২৫" — a Bengali day, month name, and year.
var cuetProsePattern = regexp.MustCompile(`([০-৯0-9]{1,2})\s*(জানুয়ারি|ফেব্রুয়ারি|মার্চ|এপ্রিল|মে|জুন|জুলাই|আগস্ট|সেপ্টেম্বর|অক্টোবর|নভেম্বর|ডিসেম্বর)\s*([০-৯0-9]{4})`)

// buetTablePattern matches BUET's table format: day name followed by a
// numeric date, e.g. "শনিবার, ১২ এপ্রিল ২০২৬".
var buetTablePattern = regexp.MustCompile(`(শনিবার|রবিবার|সোমবার|মঙ্গলবার|বুধবার|বৃহস্পতিবার|শুক্রবার)\s*,?\s*([০-৯0-9]{1,2}\s*[^\s,]+\s*[০-৯0-9]{4})`)

// ExtractExamDate runs the deterministic date extractor of spec.md §4.14
// over docs, trying each university-specific pattern in turn and
// returning the first match found. It is run ahead of the LLM so a
// matched date becomes the ground truth the LLM is asked to echo rather
// than re-derive.
func ExtractExamDate(docs []retrieval.Document) string {
	for _, d := range docs {
		if m := buetTablePattern.FindString(d.Content); m != "" {
			return m
		}
		if m := cuetProsePattern.FindString(d.Content); m != "" {
			return m
		}
		if m := kuetRuetTablePattern.FindString(d.Content); m != "" {
			return m
		}
	}
	return ""
}
