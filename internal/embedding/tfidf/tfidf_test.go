package tfidf

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"faqbot/internal/domain"
	"faqbot/internal/embedding"
	"faqbot/internal/normalize"
)

func newTestVectorizer(cfg Config) *Vectorizer {
	return NewVectorizer(normalize.New(normalize.DefaultOptions(), nil, nil), cfg)
}

func TestFit_ColumnOrderAndIDF(t *testing.T) {
	v := newTestVectorizer(Config{NgramRange: [2]int{1, 1}})
	v.Fit([]string{"reset password", "change password", "opening hours"})

	want := []string{"password", "reset", "change", "hours", "opening"}
	if got := v.Terms(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms = %q, want %q", got, want)
	}

	state, err := v.State()
	if err != nil {
		t.Fatal(err)
	}
	// "password" appears in 2 of 3 documents.
	wantIDF := math.Log(4.0/3.0) + 1
	if got := state.IDF[0]; math.Abs(got-wantIDF) > 1e-12 {
		t.Errorf("idf(password) = %v, want %v", got, wantIDF)
	}
	wantIDF = math.Log(4.0/2.0) + 1
	if got := state.IDF[1]; math.Abs(got-wantIDF) > 1e-12 {
		t.Errorf("idf(reset) = %v, want %v", got, wantIDF)
	}
}

func TestFit_Bigrams(t *testing.T) {
	v := newTestVectorizer(DefaultConfig())
	v.Fit([]string{"reset password today"})
	want := []string{"password", "password today", "reset", "reset password", "today"}
	if got := v.Terms(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms = %q, want %q", got, want)
	}
}

func TestFit_DocumentFrequencyBounds(t *testing.T) {
	corpus := []string{"alpha beta", "alpha gamma", "alpha delta"}

	v := newTestVectorizer(Config{NgramRange: [2]int{1, 1}, MinDF: 2})
	v.Fit(corpus)
	if got := v.Terms(); !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Errorf("min_df: got %q", got)
	}

	v = newTestVectorizer(Config{NgramRange: [2]int{1, 1}, MaxDF: 0.5})
	v.Fit(corpus)
	if got := v.Terms(); !reflect.DeepEqual(got, []string{"beta", "gamma", "delta"}) {
		t.Errorf("max_df: got %q", got)
	}
}

func TestFit_EmptyCorpus(t *testing.T) {
	v := newTestVectorizer(DefaultConfig())
	v.Fit(nil)
	if !v.Fitted() {
		t.Fatal("expected fitted after empty fit")
	}
	if v.Dimension() != 0 {
		t.Errorf("Dimension = %d", v.Dimension())
	}
	vec, err := v.Transform("anything")
	if err != nil {
		t.Fatal(err)
	}
	if !vec.IsZero() {
		t.Errorf("expected zero vector, got %+v", vec)
	}
}

func TestTransform_NotFitted(t *testing.T) {
	v := newTestVectorizer(DefaultConfig())
	if _, err := v.Transform("hello"); !errors.Is(err, domain.ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if _, err := v.State(); !errors.Is(err, domain.ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted from State, got %v", err)
	}
}

func TestTransform_UnitNormAndSelfSimilarity(t *testing.T) {
	v := newTestVectorizer(DefaultConfig())
	corpus := []string{"How do I reset my password?", "What are your opening hours?", "Do you ship internationally?"}
	v.Fit(corpus)

	for _, q := range corpus {
		vec, err := v.Transform(q)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(vec.Norm()-1) > 1e-9 {
			t.Errorf("norm(%q) = %v", q, vec.Norm())
		}
		if s := embedding.Dot(vec, vec); math.Abs(s-1) > 1e-9 {
			t.Errorf("self similarity %v", s)
		}
		for i := 1; i < len(vec.Indices); i++ {
			if vec.Indices[i] <= vec.Indices[i-1] {
				t.Fatalf("indices not strictly increasing: %v", vec.Indices)
			}
		}
	}

	vec, err := v.Transform("completely unrelated words")
	if err != nil {
		t.Fatal(err)
	}
	if !vec.IsZero() {
		t.Errorf("expected zero vector for unknown text")
	}
}

func TestFit_Idempotent(t *testing.T) {
	corpus := []string{"refund policy", "shipping times", "refund shipping"}
	v := newTestVectorizer(DefaultConfig())
	v.Fit(corpus)
	a, _ := v.State()
	v.Fit(corpus)
	b, _ := v.State()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("refit on same corpus changed state")
	}
}

func TestStateRestore(t *testing.T) {
	v := newTestVectorizer(DefaultConfig())
	v.Fit([]string{"reset password", "opening hours"})
	state, err := v.State()
	if err != nil {
		t.Fatal(err)
	}

	w := newTestVectorizer(DefaultConfig())
	if err := w.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	want, _ := v.Transform("reset my password")
	got, _ := w.Transform("reset my password")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored transform differs: %+v vs %+v", got, want)
	}
}

func TestRestore_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		state domain.VectorizerState
	}{
		{"size-mismatch", domain.VectorizerState{Vocab: map[string]int{"a": 0}, IDF: []float64{1, 2}}},
		{"out-of-range", domain.VectorizerState{Vocab: map[string]int{"a": 3}, IDF: []float64{1}}},
		{"duplicate-column", domain.VectorizerState{Vocab: map[string]int{"a": 0, "b": 0}, IDF: []float64{1, 1}}},
		{"nan-idf", domain.VectorizerState{Vocab: map[string]int{"a": 0}, IDF: []float64{math.NaN()}}},
		{"bad-range", domain.VectorizerState{Vocab: map[string]int{}, IDF: nil, NgramRange: [2]int{2, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVectorizer(DefaultConfig())
			if err := v.Restore(tt.state); err == nil {
				t.Fatal("expected error")
			}
			if v.Fitted() {
				t.Error("failed restore must leave vectorizer unfitted")
			}
		})
	}
}
