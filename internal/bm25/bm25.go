// Package bm25 implements sparse lexical retrieval over tokenized
// passages, per spec.md §3/§4.7: Unicode-word tokenization (preserving
// non-Latin scripts byte-for-byte), BM25Okapi scoring, and min-max
// normalization so scores fuse with cosine similarities.
//
// No ecosystem library is used here; see DESIGN.md for why bleve (the only
// full-text engine in the example pack) doesn't fit an in-memory,
// fixed-corpus BM25Okapi scoring need.
package bm25

import (
	"encoding/gob"
	"math"
	"os"
	"regexp"
	"sort"

	"golang.org/x/text/cases"

	"github.com/circularqa/coreqa/internal/models"
)

// tokenPattern matches Unicode "word" runs: letters, combining marks,
// digits, and underscore, so a Bangla word keeps its vowel signs and
// virama and stays one token rather than being mangled by an ASCII-only
// regex or split at every dependent mark.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// caseFold is a language-agnostic Unicode case fold (cases.Fold, not a
// specific-locale lower()): the query and corpus mix Bangla (caseless)
// and Latin (KUET, RUET, ...) scripts in the same string, and strings.ToLower
// only special-cases a handful of non-ASCII letters, so Latin abbreviations
// embedded in Bangla passages folded inconsistently across platforms.
var caseFold = cases.Fold()

// Tokenize case-folds and splits s into Unicode-word tokens.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(caseFold.String(s), -1)
}

const (
	k1 = 1.5
	b  = 0.75
)

// Index is the BM25Okapi state over a fixed, ordered passage corpus.
type Index struct {
	IDs         []string
	Docs        [][]string // tokenized documents, aligned with IDs
	DocFreq     map[string]int
	AvgDocLen   float64
	docLens     []int
}

// Build tokenizes passages and computes the BM25Okapi corpus statistics
// (document frequency per term, average document length).
func Build(passages []models.Passage) *Index {
	idx := &Index{
		IDs:     make([]string, len(passages)),
		Docs:    make([][]string, len(passages)),
		DocFreq: make(map[string]int),
		docLens: make([]int, len(passages)),
	}
	totalLen := 0
	for i, p := range passages {
		toks := Tokenize(p.Content)
		idx.IDs[i] = p.ID
		idx.Docs[i] = toks
		idx.docLens[i] = len(toks)
		totalLen += len(toks)
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				idx.DocFreq[t]++
				seen[t] = true
			}
		}
	}
	if len(passages) > 0 {
		idx.AvgDocLen = float64(totalLen) / float64(len(passages))
	}
	return idx
}

// idf computes the Robertson-Sparck-Jones IDF used by BM25Okapi (Okapi's
// own smoothing: log((N - n + 0.5) / (n + 0.5) + 1), always non-negative).
func (idx *Index) idf(term string) float64 {
	n := float64(len(idx.Docs))
	df := float64(idx.DocFreq[term])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

func (idx *Index) scoreDoc(docIdx int, queryTokens []string) float64 {
	doc := idx.Docs[docIdx]
	if len(doc) == 0 {
		return 0
	}
	termFreq := make(map[string]int, len(doc))
	for _, t := range doc {
		termFreq[t]++
	}
	docLen := float64(idx.docLens[docIdx])
	score := 0.0
	for _, qt := range queryTokens {
		tf := float64(termFreq[qt])
		if tf == 0 {
			continue
		}
		numerator := tf * (k1 + 1)
		denominator := tf + k1*(1-b+b*docLen/idx.AvgDocLen)
		score += idx.idf(qt) * numerator / denominator
	}
	return score
}

// Search tokenizes query identically to index-time tokenization, scores
// every document with BM25Okapi, min-max normalizes into [0, 1] (per
// spec.md §4.7/§8 — the top document has score 1 if distinct scores
// exist), and returns results sorted descending by normalized score.
func (idx *Index) Search(query string) models.ScoredList {
	queryTokens := Tokenize(query)
	raw := make(models.ScoredList, len(idx.Docs))
	for i := range idx.Docs {
		raw[i] = models.Scored{ID: idx.IDs[i], Score: idx.scoreDoc(i, queryTokens)}
	}
	normalized := MinMaxNormalize(raw)
	sort.SliceStable(normalized, func(i, j int) bool { return normalized[i].Score > normalized[j].Score })
	return normalized
}

// MinMaxNormalize rescales scores into [0, 1]. If every score is equal,
// every entry is mapped to 1, including an all-zero list (the spread<=0
// branch); when scores differ, the top document gets exactly 1 and the
// bottom one 0.
func MinMaxNormalize(list models.ScoredList) models.ScoredList {
	if len(list) == 0 {
		return nil
	}
	min, max := list[0].Score, list[0].Score
	for _, s := range list {
		if s.Score < min {
			min = s.Score
		}
		if s.Score > max {
			max = s.Score
		}
	}
	out := make(models.ScoredList, len(list))
	spread := max - min
	for i, s := range list {
		if spread <= 0 {
			out[i] = models.Scored{ID: s.ID, Score: 1}
			continue
		}
		out[i] = models.Scored{ID: s.ID, Score: (s.Score - min) / spread}
	}
	return out
}

// gobIndex mirrors Index's exported-only shape for gob, the Go-native
// analogue of "bm25_index.pkl" (pickled tokenized docs + BM25Okapi state).
type gobIndex struct {
	IDs       []string
	Docs      [][]string
	DocFreq   map[string]int
	AvgDocLen float64
	DocLens   []int
}

// Save persists the index to path as a gob snapshot.
func Save(idx *Index, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	snap := gobIndex{IDs: idx.IDs, Docs: idx.Docs, DocFreq: idx.DocFreq, AvgDocLen: idx.AvgDocLen, DocLens: idx.docLens}
	return gob.NewEncoder(f).Encode(snap)
}

// Load reads a previously-saved gob snapshot back into an Index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap gobIndex
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &Index{IDs: snap.IDs, Docs: snap.Docs, DocFreq: snap.DocFreq, AvgDocLen: snap.AvgDocLen, docLens: snap.DocLens}, nil
}
