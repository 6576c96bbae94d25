// Package synthesize turns retrieved passages into a final grounded
// answer, per spec.md §4.14: single-entity grounded QA, or multi-entity
// slot-aware comparative synthesis, with a deterministic date-regex
// extractor running ahead of the LLM for date-intent queries.
package synthesize

import (
	"context"
	"fmt"
	"strings"

	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/orchestrator"
	"github.com/circularqa/coreqa/internal/retrieval"
)

const singleEntitySystemPrompt = `You answer admission-circular questions strictly from the provided context passages. Answer in the same language as the question. Quote the relevant passage text when useful. If the context does not support an answer, reply with exactly: তথ্য পাওয়া যায়নি।`

// Single synthesizes a single-entity grounded answer from the top
// passages. For date intent, a deterministic regex-extracted date, when
// one is found, is added to the prompt as the date the LLM must use; the
// returned answer is still the LLM's own (trimmed) text. languageInstruction,
// when non-empty, is appended to the system prompt.
func Single(ctx context.Context, gw *llmgateway.Gateway, question string, docs []retrieval.Document, intent models.Intent, languageInstruction string) (string, error) {
	var extractedDate string
	if intent == models.IntentDate {
		extractedDate = ExtractExamDate(docs)
	}

	var context strings.Builder
	for _, d := range docs {
		context.WriteString(d.Content)
		context.WriteString("\n---\n")
	}

	userContent := fmt.Sprintf("Context:\n%s\nQuestion: %s", context.String(), question)
	if extractedDate != "" {
		userContent += fmt.Sprintf("\n\nThe confirmed date is: %s. Use exactly this date in your answer; do not substitute a different one.", extractedDate)
	}

	messages := []llmgateway.Message{
		{Role: "system", Content: withLanguageInstruction(singleEntitySystemPrompt, languageInstruction)},
		{Role: "user", Content: userContent},
	}
	result, err := gw.Complete(ctx, messages, llmgateway.CompleteParams{Temperature: 0})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

const multiEntitySystemPrompt = `You answer admission-circular questions that span multiple institutions. Context is grouped per institution, each labeled. Produce a comparative table when it helps (especially for exam-date questions). Never fabricate a date or fact absent from the context. For any institution whose context does not contain the requested information, write "তথ্য পাওয়া যায়নি" for that slot. Answer in the same language as the question.`

const dateIntentMultiPrompt = `You extract and compare admission exam dates across institutions. For each institution: look for schedule-table rows, disambiguate the target university via its bracketed tag (e.g. [রাজশাহী বিশ্ববিদ্যালয় RU]), and never conflate one university's date with another's. If an institution's context has no date, write "তথ্য পাওয়া যায়নি" for it. Answer in the same language as the question.`

const multiEntityPassagesPerSlot = 5
const multiEntityPassageCharLimit = 1500

// Multi synthesizes a slot-aware comparative answer across entity
// results, grouping the top-5 passages per entity (each truncated to
// ~1,500 characters to retain schedule tables) into labeled context.
func Multi(ctx context.Context, gw *llmgateway.Gateway, question string, results []orchestrator.EntityResult, intent models.Intent, languageInstruction string) (string, error) {
	var context strings.Builder
	for _, r := range results {
		fmt.Fprintf(&context, "== %s (%s) ==\n", r.FullName, r.Abbrev)
		docs := r.Documents
		if len(docs) > multiEntityPassagesPerSlot {
			docs = docs[:multiEntityPassagesPerSlot]
		}
		if len(docs) == 0 {
			context.WriteString("তথ্য পাওয়া যায়নি\n")
		}
		for _, d := range docs {
			context.WriteString(TruncateRunes(d.Content, multiEntityPassageCharLimit))
			context.WriteString("\n---\n")
		}
	}

	systemPrompt := multiEntitySystemPrompt
	if intent == models.IntentDate {
		systemPrompt = dateIntentMultiPrompt
	}

	messages := []llmgateway.Message{
		{Role: "system", Content: withLanguageInstruction(systemPrompt, languageInstruction)},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", context.String(), question)},
	}
	result, err := gw.Complete(ctx, messages, llmgateway.CompleteParams{Temperature: 0})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func withLanguageInstruction(systemPrompt, languageInstruction string) string {
	if languageInstruction == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + languageInstruction
}

// TruncateRunes clamps s to at most n runes, so multi-byte (Bengali)
// content isn't split mid-codepoint. Shared with package pipeline, which
// applies the same §8 content limit to reference passages.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
