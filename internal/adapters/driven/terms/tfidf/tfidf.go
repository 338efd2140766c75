// Package tfidf provides a TF-IDF based term extractor for topic labels.
package tfidf

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TermExtractor = (*Extractor)(nil)

// Extractor scores terms by their frequency within a group of texts
// weighted against their document frequency across the whole corpus, so
// terms common everywhere rank low and terms specific to the group rank
// high.
type Extractor struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an extractor with the default tokenizer and stopword list.
func New() *Extractor {
	return &Extractor{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// TopTerms returns up to n terms, best first, that characterise group
// relative to corpus. Terms shorter than three characters and stopwords
// are excluded.
func (e *Extractor) TopTerms(group []string, corpus []string, n int) []string {
	if n <= 0 || len(group) == 0 {
		return nil
	}

	// Document frequency across the corpus.
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// Term frequency within the group.
	tf := make(map[string]int)
	total := 0
	for _, text := range group {
		for _, tok := range e.tokenize(text) {
			tf[tok]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	corpusSize := float64(len(corpus))
	if corpusSize == 0 {
		corpusSize = 1
	}

	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, 0, len(tf))
	for term, count := range tf {
		// Smoothed IDF keeps terms present in every document from
		// zeroing out entirely.
		idf := math.Log((1+corpusSize)/(1+float64(df[term]))) + 1
		ranked = append(ranked, scored{
			term:  term,
			score: float64(count) / float64(total) * idf,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.term)
	}
	return out
}

func (e *Extractor) tokenize(text string) []string {
	var tokens []string
	for _, tok := range e.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "can",
		"had", "her", "was", "one", "our", "out", "day", "get", "has",
		"him", "his", "how", "its", "may", "new", "now", "old", "see",
		"two", "way", "who", "did", "yes", "she", "each", "which",
		"their", "will", "about", "there", "when", "your", "with",
		"this", "that", "from", "they", "have", "more", "been", "were",
		"into", "than", "them", "then", "these", "those", "some", "such",
		"only", "other", "what", "also", "over", "very", "just", "most",
		"between", "because", "through", "during", "before", "after",
		"should", "would", "could", "where", "while", "being", "both",
		"does", "here", "itself", "under", "again", "further", "once",
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
