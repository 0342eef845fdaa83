package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultCategory is assigned to records upserted without a category.
const DefaultCategory = "general"

// FAQ is an authored question/answer pair stored in the index.
type FAQ struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy so callers never share the tag slice with the index.
func (f FAQ) Clone() FAQ {
	out := f
	out.Tags = append(make([]string, 0, len(f.Tags)), f.Tags...)
	return out
}

// NormalizeTags turns a tag list into a set: trimmed, deduplicated, sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Band is the discretized confidence of an answer.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	BandNone   Band = "none"
)

// Method records which stage of the pipeline produced an answer.
type Method string

const (
	MethodRule      Method = "rule"
	MethodRetrieval Method = "retrieval"
	MethodFallback  Method = "fallback"
)

// Result is one ranked retrieval hit.
type Result struct {
	FAQ   FAQ
	Score float64
	Band  Band
}

// Alternative is a secondary answer carried in an envelope.
type Alternative struct {
	ID       int64   `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// Envelope is the value returned for every utterance.
type Envelope struct {
	Answer       string        `json:"answer"`
	MatchedID    *int64        `json:"matched_id"`
	Score        float64       `json:"score"`
	Confidence   Band          `json:"confidence"`
	Method       Method        `json:"method"`
	Alternatives []Alternative `json:"alternatives"`
	// Rule names the rule group for rule envelopes.
	Rule string `json:"rule,omitempty"`
}

// VectorizerState is the persisted form of a fitted vectorizer.
type VectorizerState struct {
	Vocab      map[string]int `json:"vocab"`
	IDF        []float64      `json:"idf"`
	NgramRange [2]int         `json:"ngram_range"`
}

// Snapshot is the self-describing persisted corpus document.
type Snapshot struct {
	FAQs       []FAQ            `json:"faqs"`
	NextID     int64            `json:"next_id"`
	Tombstones []int64          `json:"tombstones,omitempty"`
	Vectorizer *VectorizerState `json:"vectorizer,omitempty"`
}
