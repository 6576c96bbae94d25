// Package queryrewrite detects ambiguous queries and asks a small LLM to
// turn them into a clear question before they reach retrieval.
package queryrewrite

import (
	"context"
	"regexp"
	"strings"

	"github.com/circularqa/coreqa/internal/llmgateway"
)

var fillerWords = map[string]bool{
	"ভাই": true, "আপু": true, "প্লিজ": true, "দয়া": true, "করে": true,
	"please": true, "bro": true, "apu": true, "plz": true, "pls": true,
}

// vaguePatterns are single filler words or pronoun-only clauses that never
// carry enough content to retrieve against, regardless of token count.
var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?i)\s*(ki|what|hi|hello|ওকে|ok)\s*\??\s*$`),
	regexp.MustCompile(`^(?i)\s*(এটা|ওটা|সেটা|this|that|it)\s*\??\s*$`),
}

// IsUnclear reports whether query is too underspecified to retrieve
// against directly: fewer than three tokens, a vague filler/pronoun-only
// clause, or fewer than two tokens of length > 2 once filler words are
// stripped.
func IsUnclear(query string) bool {
	trimmed := strings.TrimSpace(query)
	tokens := strings.Fields(trimmed)
	if len(tokens) < 3 {
		return true
	}
	for _, pattern := range vaguePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}

	substantive := 0
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if fillerWords[lower] {
			continue
		}
		if len([]rune(tok)) > 2 {
			substantive++
		}
	}
	return substantive < 2
}

const unclearSentinel = "UNCLEAR"

const rewritePrompt = `You rewrite short or ambiguous admission-circular questions into a single, clear, self-contained question in the original language. If the question is not rewritable (too vague even with context), reply with exactly the word UNCLEAR.

Examples:
Q: তারিখ কবে?
A: ভর্তি পরীক্ষার তারিখ কবে?

Q: fee koto
A: ভর্তি ফি কত টাকা?

Q: ওকে
A: UNCLEAR`

// Rewrite asks the gateway's completion model to clarify query. If the
// model returns the UNCLEAR sentinel, or the call fails, the original
// query is returned unchanged — a rewrite failure must never block the
// pipeline.
func Rewrite(ctx context.Context, gw *llmgateway.Gateway, query string) string {
	messages := []llmgateway.Message{
		{Role: "system", Content: rewritePrompt},
		{Role: "user", Content: query},
	}
	result, err := gw.Complete(ctx, messages, llmgateway.CompleteParams{Temperature: 0})
	if err != nil {
		return query
	}
	rewritten := strings.TrimSpace(result.Text)
	if rewritten == "" || strings.EqualFold(rewritten, unclearSentinel) {
		return query
	}
	return rewritten
}
