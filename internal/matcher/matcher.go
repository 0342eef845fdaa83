// Package matcher ranks index entries against an utterance by cosine
// similarity and stratifies the survivors into confidence bands.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"faqbot/internal/domain"
	"faqbot/internal/index"
)

// Defaults for Config.
const (
	DefaultThresholdLow  = 0.60
	DefaultThresholdHigh = 0.80
	DefaultTopK          = 3
)

// Config holds the ranking thresholds.
type Config struct {
	ThresholdLow  float64
	ThresholdHigh float64
	TopK          int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{ThresholdLow: DefaultThresholdLow, ThresholdHigh: DefaultThresholdHigh, TopK: DefaultTopK}
}

// Scorer yields every entry scoring at least floor. *index.Index implements it.
type Scorer interface {
	Score(ctx context.Context, text string, floor float64) ([]index.Hit, error)
}

// Matcher is stateless apart from its configuration.
type Matcher struct {
	src Scorer
	cfg Config
}

// New returns a Matcher over src.
func New(src Scorer, cfg Config) *Matcher {
	if cfg.TopK < 1 {
		cfg.TopK = DefaultTopK
	}
	return &Matcher{src: src, cfg: cfg}
}

// Config returns the active configuration.
func (m *Matcher) Config() Config { return m.cfg }

// Rank returns at most k results scoring at least the low threshold, sorted
// by score descending with ties broken by ascending id. k < 1 selects the
// configured top_k. A deadline hit mid-scan returns domain.ErrTimeout and no
// results.
func (m *Matcher) Rank(ctx context.Context, text string, k int) ([]domain.Result, error) {
	if k < 1 {
		k = m.cfg.TopK
	}
	hits, err := m.src.Score(ctx, text, m.cfg.ThresholdLow)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].FAQ.ID < hits[j].FAQ.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.Result{FAQ: h.FAQ, Score: h.Score, Band: m.Band(h.Score)})
	}
	return out, nil
}

// Band discretizes a similarity score.
func (m *Matcher) Band(score float64) domain.Band {
	switch {
	case score > m.cfg.ThresholdHigh:
		return domain.BandHigh
	case score > m.cfg.ThresholdLow:
		return domain.BandMedium
	default:
		return domain.BandLow
	}
}
