package importer

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"faqbot/internal/domain"
)

const corpus = `# store FAQ
Q: What are your hours?
A: 9-5 Mon-Fri.
Category: store
Tags: hours, opening

Q: How do I reset my password?
A: Use the "forgot password" link
   on the login page.


question: Do you ship abroad?
answer: Yes.
`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(corpus))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Entry{
		{Question: "What are your hours?", Answer: "9-5 Mon-Fri.", Category: "store", Tags: []string{"hours", "opening"}, Line: 2},
		{Question: "How do I reset my password?", Answer: "Use the \"forgot password\" link\non the login page.", Line: 7},
		{Question: "Do you ship abroad?", Answer: "Yes.", Line: 12},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %+v\nwant %+v", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing-answer", "Q: only a question\n"},
		{"missing-question", "A: only an answer\n"},
		{"stray-line", "hello\nQ: q\nA: a\n"},
		{"two-questions", "Q: one\nQ: two\nA: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.in)); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.txt")
	if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("entries = %d", len(got))
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
