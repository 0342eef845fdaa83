package matcher

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"faqbot/internal/domain"
	"faqbot/internal/embedding/tfidf"
	"faqbot/internal/index"
	"faqbot/internal/normalize"
)

type fakeScorer struct {
	hits []index.Hit
	err  error
}

func (f fakeScorer) Score(_ context.Context, _ string, floor float64) ([]index.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []index.Hit
	for _, h := range f.hits {
		if h.Score >= floor {
			out = append(out, h)
		}
	}
	return out, nil
}

func hit(id int64, score float64) index.Hit {
	return index.Hit{FAQ: domain.FAQ{ID: id}, Score: score}
}

func ids(rs []domain.Result) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.FAQ.ID)
	}
	return out
}

func TestRank_OrderAndTruncation(t *testing.T) {
	m := New(fakeScorer{hits: []index.Hit{
		hit(9, 0.70), hit(3, 0.95), hit(7, 0.70), hit(1, 0.59), hit(2, 0.85),
	}}, DefaultConfig())

	got, err := m.Rank(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{3, 2, 7}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}

	got, _ = m.Rank(context.Background(), "q", 10)
	if want := []int64{3, 2, 7, 9}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatal("ranking not non-increasing")
		}
	}
}

func TestBand(t *testing.T) {
	m := New(fakeScorer{}, DefaultConfig())
	tests := []struct {
		score float64
		want  domain.Band
	}{
		{1.0, domain.BandHigh},
		{0.81, domain.BandHigh},
		{0.80, domain.BandMedium},
		{0.61, domain.BandMedium},
		{0.60, domain.BandLow},
	}
	for _, tt := range tests {
		if got := m.Band(tt.score); got != tt.want {
			t.Errorf("Band(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRank_PropagatesTimeout(t *testing.T) {
	m := New(fakeScorer{err: domain.ErrTimeout}, DefaultConfig())
	got, err := m.Rank(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrTimeout) || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	n := normalize.New(normalize.DefaultOptions(), nil, nil)
	return index.New(tfidf.NewVectorizer(n, tfidf.DefaultConfig()), n, index.Options{})
}

func TestRank_ExactRetrieval(t *testing.T) {
	x := newIndex(t)
	if _, err := x.Append(domain.FAQ{Question: "What are your hours?", Answer: "9-5 Mon-Fri"}); err != nil {
		t.Fatal(err)
	}
	m := New(x, DefaultConfig())
	got, err := m.Rank(context.Background(), "what are your hours?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FAQ.ID != 1 || got[0].Score < 0.99 || got[0].Band != domain.BandHigh {
		t.Fatalf("got %+v", got)
	}
}

func TestRank_IdenticalQuestionsTieBreak(t *testing.T) {
	x := newIndex(t)
	questions := []string{
		"Where is the office?", "How do I pay?", "Can I cancel?", "Is there parking?",
		"How do I reset my password?", "Do you deliver?", "How do I reset my password?",
	}
	for _, q := range questions {
		if _, err := x.Append(domain.FAQ{Question: q, Answer: "a"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := x.Delete(6); err != nil {
		t.Fatal(err)
	}
	m := New(x, DefaultConfig())
	got, err := m.Rank(context.Background(), "How do I reset my password?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) < 2 || got[0].FAQ.ID != 5 || got[1].FAQ.ID != 7 {
		t.Fatalf("ids = %v", ids(got))
	}
	if got[0].Score != got[1].Score {
		t.Errorf("identical questions scored differently: %v vs %v", got[0].Score, got[1].Score)
	}
}

func TestRank_EmptyAndUnknown(t *testing.T) {
	m := New(newIndex(t), DefaultConfig())
	for _, q := range []string{"", "anything at all"} {
		got, err := m.Rank(context.Background(), q, 3)
		if err != nil || len(got) != 0 {
			t.Errorf("Rank(%q) = %v, %v", q, got, err)
		}
	}
}

func TestRank_Deadline(t *testing.T) {
	x := newIndex(t)
	if _, err := x.Append(domain.FAQ{Question: "What are your hours?", Answer: "9-5"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), -time.Millisecond)
	defer cancel()
	if _, err := New(x, DefaultConfig()).Rank(ctx, "hours", 3); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
