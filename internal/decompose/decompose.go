// Package decompose splits a multi-entity query into one sub-query per
// detected institution.
package decompose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/models"
)

// SubQuery is one entity's slice of a decomposed multi-entity question.
type SubQuery struct {
	Abbrev   string
	FullName string
	Query    string
}

const decomposePromptTemplate = `The user asked a question that concerns multiple institutions: %s.
Original question: %q

For each institution, produce exactly one line in the form:
ABBREV|sub question text

Emit exactly %d lines, one per institution listed above, in the same order.`

// Decompose asks the reasoning model for one ABBREV|sub_query line per
// entity. If the LLM's parsed line count doesn't match len(entities), it
// falls back to a rule-based decomposer that prefixes each entity's full
// name onto the query's common "question part".
func Decompose(ctx context.Context, gw *llmgateway.Gateway, query string, entities []models.EntityMatch) ([]SubQuery, error) {
	abbrevs := make([]string, len(entities))
	for i, e := range entities {
		abbrevs[i] = e.Abbrev
	}
	prompt := fmt.Sprintf(decomposePromptTemplate, strings.Join(abbrevs, ", "), query, len(entities))

	messages := []llmgateway.Message{
		{Role: "system", Content: "You decompose multi-institution admission questions into per-institution sub-questions."},
		{Role: "user", Content: prompt},
	}
	result, err := gw.Complete(ctx, messages, llmgateway.CompleteParams{Temperature: 0})
	if err != nil {
		return ruleBasedDecompose(query, entities), nil
	}

	parsed := parseLines(result.Text, entities)
	if len(parsed) != len(entities) {
		return ruleBasedDecompose(query, entities), nil
	}
	return parsed, nil
}

func parseLines(text string, entities []models.EntityMatch) []SubQuery {
	byAbbrev := make(map[string]models.EntityMatch, len(entities))
	for _, e := range entities {
		byAbbrev[e.Abbrev] = e
	}

	var out []SubQuery
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		abbrev := strings.ToUpper(strings.TrimSpace(parts[0]))
		entity, ok := byAbbrev[abbrev]
		if !ok {
			continue
		}
		out = append(out, SubQuery{
			Abbrev:   entity.Abbrev,
			FullName: entity.FullName,
			Query:    strings.TrimSpace(parts[1]),
		})
	}
	return out
}

// commonQuestionPatterns match the "question part" of a multi-entity query
// once the institution names are stripped — e.g. "admit card kobe", "fee
// koto", "porikkha tarikh" — so the rule-based fallback can prefix each
// entity's full name onto the same shared question.
var commonQuestionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)admit\s*card\s*(kobe|kokhon)?`),
	regexp.MustCompile(`(?i)fee\s*(koto|kত)?`),
	regexp.MustCompile(`(?i)(porikkha|exam)\s*(tarikh|date)?`),
	regexp.MustCompile(`তারিখ`),
	regexp.MustCompile(`ফি`),
	regexp.MustCompile(`প্রবেশপত্র`),
}

// ruleBasedDecompose is the deterministic fallback used when the LLM's
// output doesn't parse into exactly one line per entity: it extracts the
// query's common question part and prefixes each entity's full name.
func ruleBasedDecompose(query string, entities []models.EntityMatch) []SubQuery {
	questionPart := query
	for _, pattern := range commonQuestionPatterns {
		if loc := pattern.FindStringIndex(query); loc != nil {
			questionPart = query[loc[0]:]
			break
		}
	}

	out := make([]SubQuery, len(entities))
	for i, e := range entities {
		out[i] = SubQuery{
			Abbrev:   e.Abbrev,
			FullName: e.FullName,
			Query:    e.FullName + " " + questionPart,
		}
	}
	return out
}
