// Package models holds the read-mostly data model shared across the
// retrieval and synthesis core: passages, entities, facts, the graph's
// vertex kinds, and the per-request query result shape.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Intent is the kind of information a query is asking for.
type Intent string

const (
	IntentDate        Intent = "date"
	IntentFee         Intent = "fee"
	IntentEligibility Intent = "eligibility"
	IntentSeat        Intent = "seat"
	IntentAdmitCard   Intent = "admit_card"
	IntentWebsite     Intent = "website"
	IntentExam        Intent = "exam"
	IntentGeneral     Intent = "general"
)

// Passage is an immutable, opaque chunk of a source document, prefixed at
// index time with a bracketed institution tag, e.g. "[Chittagong University CU] ...".
type Passage struct {
	ID      string
	Content string
}

// PassageID derives the stable content-hash id for a passage body.
func PassageID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "p_" + hex.EncodeToString(sum[:])[:24]
}

// NewPassage builds a Passage with its content-hash id populated.
func NewPassage(content string) Passage {
	return Passage{ID: PassageID(content), Content: content}
}

// Entity is a canonical, lowercased phrase extracted by OpenIE at index time.
type Entity struct {
	ID   string
	Name string // canonical, lowercased
}

// EntityID derives the stable content-hash id for an entity's canonical name.
func EntityID(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return "e_" + hex.EncodeToString(sum[:])[:24]
}

// NewEntity builds an Entity with its content-hash id populated.
func NewEntity(name string) Entity {
	name = strings.ToLower(strings.TrimSpace(name))
	return Entity{ID: EntityID(name), Name: name}
}

// Fact is a (subject, predicate, object) triple produced by OpenIE, with a
// content-hashed id. Its embedding lives in the fact EmbeddingStore, not here.
type Fact struct {
	ID        string
	Subject   string // entity canonical name
	Predicate string
	Object    string // entity canonical name
}

// FactID derives the stable content-hash id for a (subject, predicate, object) triple.
func FactID(subject, predicate, object string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(subject) + "\x00" + predicate + "\x00" + strings.ToLower(object)))
	return "f_" + hex.EncodeToString(sum[:])[:24]
}

// NewFact builds a Fact with its content-hash id populated.
func NewFact(subject, predicate, object string) Fact {
	return Fact{
		ID:        FactID(subject, predicate, object),
		Subject:   strings.ToLower(subject),
		Predicate: predicate,
		Object:    strings.ToLower(object),
	}
}

// ScoredFact pairs a matched Fact with its similarity/confidence score.
type ScoredFact struct {
	Fact  Fact
	Score float64
}

// Scored pairs an id (passage, entity, etc.) with a score. It is the
// common currency between retrieval, fusion, and filtering stages.
type Scored struct {
	ID    string
	Score float64
}

// ScoredList is a list of Scored results, conventionally sorted descending
// by Score. Helpers below keep that invariant explicit at call sites.
type ScoredList []Scored

// ByID returns the score for id, and whether it was present.
func (l ScoredList) ByID(id string) (float64, bool) {
	for _, s := range l {
		if s.ID == id {
			return s.Score, true
		}
	}
	return 0, false
}

// IDs extracts just the ids, preserving order.
func (l ScoredList) IDs() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.ID
	}
	return out
}

// EntityMatch is a detected institution: its abbreviation and full name.
type EntityMatch struct {
	Abbrev   string
	FullName string
}

// EntityFilterRule disambiguates look-alike institution abbreviations:
// a passage is kept only if it contains at least one MustContain marker
// and none of the MustNotContain markers. Markers are case-folded substrings.
type EntityFilterRule struct {
	Abbrev        string
	MustContain   []string
	MustNotContain []string
}

// IntentParams bundles per-intent retrieval tuning.
type IntentParams struct {
	TopK          int
	BM25Weight    float64
	BoostKeywords []string
}

// QueryResult is the internal, request-scoped accumulation of a single
// retrieval pass: the candidate passages, the facts that seeded PPR, the
// entities detected in the query, and the classified intent.
type QueryResult struct {
	Question          string
	CandidatePassages ScoredList
	MatchedFacts      []ScoredFact
	QueryEntities     []string
	Intent            Intent
}

// Reference is a piece of evidence surfaced alongside a synthesized answer.
type Reference struct {
	Content string
	Score   float64
}

// Response is the envelope returned by the top-level pipeline controller.
type Response struct {
	Question   string // the ORIGINAL question, not the rewritten one
	Answer     string
	References []Reference
	NotFound   bool
}
