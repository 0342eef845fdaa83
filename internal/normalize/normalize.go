// Package normalize turns free text into the canonical token stream shared by
// the vectorizer, the rule engine and the tagger.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Options toggles each normalization step.
type Options struct {
	Casefold           bool
	StripPunctuation   bool
	CollapseWhitespace bool
	DropStopwords      bool
	Lemmatize          bool
}

// DefaultOptions enables everything except lemmatization.
func DefaultOptions() Options {
	return Options{
		Casefold:           true,
		StripPunctuation:   true,
		CollapseWhitespace: true,
		DropStopwords:      true,
	}
}

// Lemmatizer maps a token to its lemma. ok is false for unknown tokens, which
// then pass through unchanged.
type Lemmatizer interface {
	Lemma(token string) (lemma string, ok bool)
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	opts      Options
	stopwords map[string]struct{}
	lemmas    Lemmatizer
}

// New builds a Normalizer. A nil stop-word set selects DefaultStopwords.
func New(opts Options, stopwords map[string]struct{}, lemmas Lemmatizer) *Normalizer {
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}
	return &Normalizer{opts: opts, stopwords: stopwords, lemmas: lemmas}
}

// Options reports the profile this normalizer applies.
func (n *Normalizer) Options() Options { return n.opts }

// Canonical returns the cleaned text before tokenization.
func (n *Normalizer) Canonical(text string) string {
	if text == "" {
		return ""
	}
	s := norm.NFKC.String(text)
	if n.opts.Casefold {
		// Casers keep state, so one per call.
		s = cases.Fold().String(s)
	}
	if n.opts.StripPunctuation {
		s = stripPunctuation(s)
	}
	if n.opts.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return s
}

// Normalize returns the ordered token sequence for text. Empty input yields nil.
func (n *Normalizer) Normalize(text string) []string {
	fields := strings.Fields(n.Canonical(text))
	if len(fields) == 0 {
		return nil
	}
	out := fields[:0]
	for _, tok := range fields {
		if n.opts.DropStopwords {
			if _, stop := n.stopwords[tok]; stop {
				continue
			}
		}
		if n.opts.Lemmatize && n.lemmas != nil {
			if lemma, ok := n.lemmas.Lemma(tok); ok && lemma != "" {
				tok = lemma
			}
		}
		out = append(out, tok)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsStopword reports whether tok is in the configured stop-word set.
func (n *Normalizer) IsStopword(tok string) bool {
	_, ok := n.stopwords[tok]
	return ok
}

// stripPunctuation replaces punctuation and symbols with spaces. Apostrophes
// are dropped instead so contractions stay one token ("what's" -> "whats").
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
