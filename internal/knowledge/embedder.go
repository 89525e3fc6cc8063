package knowledge

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// embedder is a TF-IDF vectorizer. It builds a vocabulary and IDF weights
// from the indexed corpus and produces L2-normalized vectors, so cosine
// similarity reduces to a dot product.
type embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func newEmbedder() *embedder {
	return &embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Prepare builds the vocabulary and IDF values from the corpus.
func (e *embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus")
	}

	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Restore loads a previously persisted vocabulary and IDF table.
func (e *embedder) Restore(terms []string, idf []float64) error {
	if len(terms) == 0 || len(terms) != len(idf) {
		return errors.New("invalid persisted vocabulary")
	}
	e.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
	}
	e.idf = idf
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Vocabulary returns the terms in index order with their IDF weights.
func (e *embedder) Vocabulary() ([]string, []float64) {
	terms := make([]string, e.dimension)
	for term, i := range e.vocabulary {
		terms[i] = term
	}
	return terms, e.idf
}

// Embed computes the normalized TF-IDF vector for text. A text with no
// known tokens yields the zero vector.
func (e *embedder) Embed(text string) ([]float64, error) {
	if !e.prepared {
		return nil, errors.New("embedder not prepared")
	}

	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}

	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to",
		"of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were",
		"be", "been", "being", "it", "this", "that", "these", "those", "from",
		"up", "down", "over", "under", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
