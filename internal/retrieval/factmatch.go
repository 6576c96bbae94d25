package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/circularqa/coreqa/internal/embedstore"
	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/pipelineerr"
)

// FactMatcher embeds a query, ranks facts by cosine similarity, and asks
// the reasoning LLM to filter the top candidates down to the ones that
// actually answer the query, per spec.md §4.8.
type FactMatcher struct {
	gateway     embedstore.Gateway
	factStore   embedstore.Store
	llm         *llmgateway.Gateway
	facts       map[string]models.Fact
	linkingTopK int
	afterRerank int
}

// NewFactMatcher wires a matcher over factStore (fact-id -> embedding)
// and facts (fact-id -> Fact), using gateway to embed the query and llm to
// run the filter prompt.
func NewFactMatcher(gateway embedstore.Gateway, factStore embedstore.Store, llm *llmgateway.Gateway, facts map[string]models.Fact, linkingTopK, afterRerank int) *FactMatcher {
	return &FactMatcher{gateway: gateway, factStore: factStore, llm: llm, facts: facts, linkingTopK: linkingTopK, afterRerank: afterRerank}
}

const factFilterPrompt = `You are given a question and a numbered list of candidate facts (subject, predicate, object triples). Return a JSON object of the form {"fact": [[subject, predicate, object], ...]} containing only the facts that help answer the question, in relevance order. If none apply, return {"fact": []}.`

// Match returns the facts the LLM selected as relevant, each carrying its
// original cosine score against the query embedding.
func (m *FactMatcher) Match(ctx context.Context, query string) ([]models.ScoredFact, error) {
	vectors, err := m.gateway.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	ranked, err := m.factStore.SearchAll(ctx, embedstore.Normalize(vectors[0]))
	if err != nil {
		return nil, err
	}
	if len(ranked) > m.linkingTopK {
		ranked = ranked[:m.linkingTopK]
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	candidates := make([]models.Fact, 0, len(ranked))
	scoreByFactID := make(map[string]float64, len(ranked))
	var listing strings.Builder
	for i, r := range ranked {
		f, ok := m.facts[r.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, f)
		scoreByFactID[r.ID] = r.Score
		fmt.Fprintf(&listing, "%d. (%s, %s, %s)\n", i+1, f.Subject, f.Predicate, f.Object)
	}

	messages := []llmgateway.Message{
		{Role: "system", Content: factFilterPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nCandidates:\n%s", query, listing.String())},
	}
	result, err := m.llm.Complete(ctx, messages, llmgateway.CompleteParams{Temperature: 0})
	if err != nil {
		if pipelineerr.IsTransient(err) {
			return nil, err
		}
		return fallbackToCandidates(candidates, scoreByFactID, m.afterRerank), nil
	}

	triples, ok := parseFactResponse(result.Text)
	if !ok || len(triples) == 0 {
		return fallbackToCandidates(candidates, scoreByFactID, m.afterRerank), nil
	}

	out := make([]models.ScoredFact, 0, len(triples))
	for _, triple := range triples {
		idx := closestCandidateIndex(triple, candidates)
		if idx < 0 {
			continue
		}
		f := candidates[idx]
		out = append(out, models.ScoredFact{Fact: f, Score: scoreByFactID[f.ID]})
	}
	if len(out) == 0 {
		return fallbackToCandidates(candidates, scoreByFactID, m.afterRerank), nil
	}
	return out, nil
}

func fallbackToCandidates(candidates []models.Fact, scoreByFactID map[string]float64, cap int) []models.ScoredFact {
	if cap > 0 && cap < len(candidates) {
		candidates = candidates[:cap]
	}
	out := make([]models.ScoredFact, len(candidates))
	for i, f := range candidates {
		out[i] = models.ScoredFact{Fact: f, Score: scoreByFactID[f.ID]}
	}
	return out
}

type factResponse struct {
	Fact [][3]string `json:"fact"`
}

// parseFactResponse tolerantly extracts [[subj,pred,obj],...] triples from
// the LLM's reply, per spec.md §4.8, trying in order: plain JSON, JSON
// after rewriting Python-literal single quotes, and JSON after a
// best-effort bracket-closing repair for truncated output. The two repairs
// are separate attempts: a truncated reply that also uses single quotes is
// not recovered.
func parseFactResponse(text string) ([][3]string, bool) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "{"); idx > 0 {
		text = text[idx:]
	}

	candidates := []string{text, pythonLiteralToJSON(text), closeUnbalancedBrackets(text)}
	for _, candidate := range candidates {
		var resp factResponse
		if err := json.Unmarshal([]byte(candidate), &resp); err == nil {
			return resp.Fact, true
		}
	}
	return nil, false
}

// pythonLiteralToJSON rewrites single-quoted Python-literal strings into
// double-quoted JSON strings. It does not attempt to handle escaped quotes
// within Python string literals — the LLM's prompt never asks for them.
func pythonLiteralToJSON(s string) string {
	var out strings.Builder
	inDouble := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			inDouble = !inDouble
			out.WriteByte(c)
			continue
		}
		if c == '\'' && !inDouble {
			out.WriteByte('"')
			continue
		}
		out.WriteByte(c)
	}
	return out.String()
}

// closeUnbalancedBrackets appends closing brackets/braces for any opened
// but unclosed structures, so a response truncated mid-array still parses.
func closeUnbalancedBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[', '{':
			if !inString {
				stack = append(stack, c)
			}
		case ']', '}':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var closer strings.Builder
	closer.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			closer.WriteByte(']')
		} else {
			closer.WriteByte('}')
		}
	}
	return closer.String()
}

// closestCandidateIndex maps a parsed (subject,predicate,object) triple
// back to the candidate list by string-closest match (Levenshtein
// distance summed across the three fields), breaking ties by the lowest
// candidate index so repeated runs are deterministic.
func closestCandidateIndex(triple [3]string, candidates []models.Fact) int {
	best := -1
	bestDist := -1
	for i, c := range candidates {
		dist := levenshtein(triple[0], c.Subject) + levenshtein(triple[1], c.Predicate) + levenshtein(triple[2], c.Object)
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}
	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}
