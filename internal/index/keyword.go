// Package index maintains the in-memory secondary indexes: the keyword
// inverted index and the tag and path indexes. All entries hold document
// identifiers only, never content; the record store owns the bodies.
// Indexes are rebuilt deterministically from the store tables on open and
// patched incrementally on every mutation, so they are never stale.
package index

import (
	"math"
	"sync"

	"github.com/locchh/dkb/internal/token"
)

// Keyword is an inverted index mapping normalized terms to postings.
// Scoring is term-frequency / inverse-document-frequency style: each matched
// query term contributes a saturating TF weight damped by how common the
// term is across the corpus, so matching more distinct terms always beats
// repeating a single term.
type Keyword struct {
	mu       sync.RWMutex
	postings map[string]map[string]int // term -> id -> term frequency
	terms    map[string][]string       // id -> distinct terms (for removal)
}

// NewKeyword creates an empty keyword index.
func NewKeyword() *Keyword {
	return &Keyword{
		postings: make(map[string]map[string]int),
		terms:    make(map[string][]string),
	}
}

// Index tokenizes text and records postings for id, replacing any prior
// entry for the same id.
func (k *Keyword) Index(id, text string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.removeLocked(id)

	freq := make(map[string]int)
	for _, term := range token.Terms(text) {
		freq[term]++
	}
	if len(freq) == 0 {
		return
	}

	distinct := make([]string, 0, len(freq))
	for term, tf := range freq {
		posting, ok := k.postings[term]
		if !ok {
			posting = make(map[string]int)
			k.postings[term] = posting
		}
		posting[id] = tf
		distinct = append(distinct, term)
	}
	k.terms[id] = distinct
}

// Remove drops every posting for id.
func (k *Keyword) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeLocked(id)
}

func (k *Keyword) removeLocked(id string) {
	for _, term := range k.terms[id] {
		posting := k.postings[term]
		delete(posting, id)
		if len(posting) == 0 {
			delete(k.postings, term)
		}
	}
	delete(k.terms, id)
}

// Clear drops the whole index.
func (k *Keyword) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.postings = make(map[string]map[string]int)
	k.terms = make(map[string][]string)
}

// Score ranks indexed ids against the query terms. Per matched term the
// contribution is (tf / (tf+1)) / ln(1 + df): the saturating numerator caps
// repeated-term growth below the value of matching an additional distinct
// term, and the denominator discounts terms common across the corpus.
// Identical index state and query always produce identical scores.
func (k *Keyword) Score(queryTerms []string) map[string]float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()

	scores := make(map[string]float64)
	seen := make(map[string]struct{}, len(queryTerms))

	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		posting, ok := k.postings[term]
		if !ok {
			continue
		}
		idf := 1.0 / math.Log(1.0+float64(len(posting)))
		for id, tf := range posting {
			scores[id] += (float64(tf) / float64(tf+1)) * idf
		}
	}
	return scores
}

// ScoreQuery tokenizes a raw query string and scores it.
func (k *Keyword) ScoreQuery(query string) map[string]float64 {
	return k.Score(token.Terms(query))
}

// TermCount returns the number of distinct indexed terms.
func (k *Keyword) TermCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.postings)
}
