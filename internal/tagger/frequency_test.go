package tagger

import (
	"reflect"
	"testing"

	"faqbot/internal/normalize"
)

func TestTags(t *testing.T) {
	tg := NewFrequencyTagger(normalize.New(normalize.DefaultOptions(), nil, nil))
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"empty", "", 3, []string{}},
		{"zero-max", "shipping shipping", 0, nil},
		{"frequency-then-order", "Shipping takes 5 days. Express shipping takes 2 days. Shipping is free.", 3, []string{"shipping", "takes", "days"}},
		{"skips-short-and-numbers", "Go to 42 on a map", 5, []string{"map"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tg.Tags(tt.text, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tags = %q, want %q", got, tt.want)
			}
		})
	}
}
