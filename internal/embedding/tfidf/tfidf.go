package tfidf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"faqbot/internal/domain"
	"faqbot/internal/embedding"
	"faqbot/internal/normalize"
)

// Config controls vocabulary construction.
type Config struct {
	NgramRange [2]int
	MinDF      int
	MaxDF      float64
}

// DefaultConfig returns word unigrams+bigrams with no document-frequency pruning.
func DefaultConfig() Config {
	return Config{NgramRange: [2]int{1, 2}, MinDF: 1, MaxDF: 1.0}
}

// Vectorizer implements a TF-IDF vectorizer over word n-grams.
// It builds a vocabulary from the corpus and computes smoothed IDF values.
// A Vectorizer is not safe for concurrent mutation; the index serializes
// Fit/Restore against Transform.
type Vectorizer struct {
	cfg        Config
	normalizer *normalize.Normalizer
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewVectorizer creates an unfitted vectorizer that tokenizes with n.
func NewVectorizer(n *normalize.Normalizer, cfg Config) *Vectorizer {
	if cfg.NgramRange[0] < 1 {
		cfg.NgramRange[0] = 1
	}
	if cfg.NgramRange[1] < cfg.NgramRange[0] {
		cfg.NgramRange[1] = cfg.NgramRange[0]
	}
	if cfg.MinDF < 1 {
		cfg.MinDF = 1
	}
	if cfg.MaxDF <= 0 || cfg.MaxDF > 1 {
		cfg.MaxDF = 1.0
	}
	return &Vectorizer{
		cfg:        cfg,
		normalizer: n,
		vocabulary: make(map[string]int),
	}
}

var _ embedding.Embedder = (*Vectorizer)(nil)

// Name returns the identifier of this embedder implementation.
func (v *Vectorizer) Name() string { return "tfidf" }

// Fitted reports whether Fit or Restore has run.
func (v *Vectorizer) Fitted() bool { return v.prepared }

// Dimension returns the vocabulary size.
func (v *Vectorizer) Dimension() int { return len(v.idf) }

// NgramRange returns the active n-gram range.
func (v *Vectorizer) NgramRange() [2]int { return v.cfg.NgramRange }

// Fit discards any previous state and builds the vocabulary and IDF values
// from corpus. Columns are assigned in order of first appearance; n-grams that
// first appear in the same document are ordered lexicographically. A corpus
// with no surviving n-grams yields an empty vocabulary.
func (v *Vectorizer) Fit(corpus []string) {
	df := make(map[string]int)
	var order []string
	for _, text := range corpus {
		grams := v.ngrams(v.normalizer.Normalize(text))
		seen := make(map[string]struct{}, len(grams))
		var fresh []string
		for _, g := range grams {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			if df[g] == 0 {
				fresh = append(fresh, g)
			}
			df[g]++
		}
		sort.Strings(fresh)
		order = append(order, fresh...)
	}

	n := float64(len(corpus))
	maxCount := v.cfg.MaxDF * n
	v.vocabulary = make(map[string]int)
	v.idf = v.idf[:0:0]
	for _, term := range order {
		d := df[term]
		if d < v.cfg.MinDF || float64(d) > maxCount {
			continue
		}
		v.vocabulary[term] = len(v.idf)
		// Smoothed IDF
		v.idf = append(v.idf, math.Log((1+n)/(1+float64(d)))+1.0)
	}
	v.prepared = true
}

// Transform computes the L2-normalized TF-IDF vector for text. Unknown
// n-grams are ignored; text without known n-grams yields the zero vector.
func (v *Vectorizer) Transform(text string) (embedding.Vector, error) {
	if !v.prepared {
		return embedding.Vector{}, fmt.Errorf("tfidf transform: %w", domain.ErrNotFitted)
	}
	tokens := v.normalizer.Normalize(text)
	if len(tokens) == 0 || len(v.idf) == 0 {
		return embedding.Vector{}, nil
	}
	tf := make(map[int]float64)
	for _, g := range v.ngrams(tokens) {
		if idx, ok := v.vocabulary[g]; ok {
			tf[idx]++
		}
	}
	if len(tf) == 0 {
		return embedding.Vector{}, nil
	}
	indices := make([]int, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	values := make([]float64, len(indices))
	norm := 0.0
	for i, idx := range indices {
		values[i] = tf[idx] * v.idf[idx]
		norm += values[i] * values[i]
	}
	// L2 normalize
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] /= norm
	}
	return embedding.Vector{Indices: indices, Values: values}, nil
}

// Terms returns the vocabulary ordered by column.
func (v *Vectorizer) Terms() []string {
	terms := make([]string, len(v.idf))
	for term, idx := range v.vocabulary {
		terms[idx] = term
	}
	return terms
}

// State exports the fitted vocabulary, IDF and n-gram range.
func (v *Vectorizer) State() (domain.VectorizerState, error) {
	if !v.prepared {
		return domain.VectorizerState{}, fmt.Errorf("tfidf state: %w", domain.ErrNotFitted)
	}
	vocab := make(map[string]int, len(v.vocabulary))
	for k, idx := range v.vocabulary {
		vocab[k] = idx
	}
	return domain.VectorizerState{
		Vocab:      vocab,
		IDF:        append([]float64(nil), v.idf...),
		NgramRange: v.cfg.NgramRange,
	}, nil
}

// Restore replaces the fitted state with a previously exported one. The state
// is validated first; on error the vectorizer is unchanged.
func (v *Vectorizer) Restore(state domain.VectorizerState) error {
	rng := state.NgramRange
	if rng == [2]int{} {
		rng = v.cfg.NgramRange
	}
	if rng[0] < 1 || rng[1] < rng[0] {
		return fmt.Errorf("tfidf restore: invalid ngram range %v", rng)
	}
	if len(state.Vocab) != len(state.IDF) {
		return fmt.Errorf("tfidf restore: vocab size %d != idf size %d", len(state.Vocab), len(state.IDF))
	}
	used := make([]bool, len(state.IDF))
	for term, idx := range state.Vocab {
		if idx < 0 || idx >= len(state.IDF) {
			return fmt.Errorf("tfidf restore: column %d for %q out of range", idx, term)
		}
		if used[idx] {
			return fmt.Errorf("tfidf restore: column %d assigned twice", idx)
		}
		used[idx] = true
	}
	for i, w := range state.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return fmt.Errorf("tfidf restore: invalid idf %v at column %d", w, i)
		}
	}

	vocab := make(map[string]int, len(state.Vocab))
	for k, idx := range state.Vocab {
		vocab[k] = idx
	}
	v.vocabulary = vocab
	v.idf = append([]float64(nil), state.IDF...)
	v.cfg.NgramRange = rng
	v.prepared = true
	return nil
}

func (v *Vectorizer) ngrams(tokens []string) []string {
	lo, hi := v.cfg.NgramRange[0], v.cfg.NgramRange[1]
	var out []string
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 {
				out = append(out, tokens[i])
				continue
			}
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
