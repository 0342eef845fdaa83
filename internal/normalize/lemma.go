package normalize

import (
	"fmt"
	"os"

	snowballeng "github.com/kljensen/snowball/english"
	"gopkg.in/yaml.v3"
)

// DictLemmatizer looks tokens up in a fixed dictionary.
type DictLemmatizer map[string]string

// Lemma implements Lemmatizer.
func (d DictLemmatizer) Lemma(token string) (string, bool) {
	l, ok := d[token]
	return l, ok
}

// LoadLemmaFile reads a YAML mapping of token -> lemma.
func LoadLemmaFile(path string) (DictLemmatizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lemma file %s: %w", path, err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse lemma file %s: %w", path, err)
	}
	return DictLemmatizer(m), nil
}

// SnowballLemmatizer stems tokens with the Snowball English stemmer.
type SnowballLemmatizer struct{}

// Lemma implements Lemmatizer.
func (SnowballLemmatizer) Lemma(token string) (string, bool) {
	stem := snowballeng.Stem(token, false)
	return stem, stem != ""
}

// Chain tries each lemmatizer in order and returns the first hit.
type Chain []Lemmatizer

// Lemma implements Lemmatizer.
func (c Chain) Lemma(token string) (string, bool) {
	for _, l := range c {
		if l == nil {
			continue
		}
		if lemma, ok := l.Lemma(token); ok {
			return lemma, true
		}
	}
	return "", false
}
