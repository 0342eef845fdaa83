package tagger

import (
	"sort"
	"unicode/utf8"

	"faqbot/internal/domain"
	"faqbot/internal/normalize"
)

// minTagLen drops very short tokens such as units and initials.
const minTagLen = 3

// FrequencyTagger picks the most frequent content tokens of a text as tags.
type FrequencyTagger struct {
	norm *normalize.Normalizer
}

var _ domain.Tagger = (*FrequencyTagger)(nil)

// NewFrequencyTagger creates a tagger that tokenizes with n.
func NewFrequencyTagger(n *normalize.Normalizer) *FrequencyTagger {
	return &FrequencyTagger{norm: n}
}

// Tags returns up to max tokens ordered by frequency, ties by first
// appearance. Stop words, numbers and tokens shorter than three runes are
// skipped.
func (t *FrequencyTagger) Tags(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	type stat struct {
		tok   string
		count int
		first int
	}
	stats := map[string]*stat{}
	for i, tok := range t.norm.Normalize(text) {
		if t.norm.IsStopword(tok) || utf8.RuneCountInString(tok) < minTagLen || isNumber(tok) {
			continue
		}
		if s, ok := stats[tok]; ok {
			s.count++
			continue
		}
		stats[tok] = &stat{tok: tok, count: 1, first: i}
	}
	ranked := make([]*stat, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})
	if max > len(ranked) {
		max = len(ranked)
	}
	out := make([]string, 0, max)
	for _, s := range ranked[:max] {
		out = append(out, s.tok)
	}
	return out
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
