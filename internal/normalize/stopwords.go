package normalize

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var defaultStopwordList = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as",
	"is", "are", "was", "were", "be", "been", "being", "am", "it", "its", "this", "that", "these", "those", "from",
	"up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through",
	"during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just",
	"don", "dont", "should", "now", "i", "me", "my", "you", "your", "yours", "we", "our", "us", "do", "does", "did",
	"have", "has", "had", "there", "here", "please", "would", "could",
}

// DefaultStopwords returns a fresh copy of the built-in English stop-word set.
func DefaultStopwords() map[string]struct{} {
	m := make(map[string]struct{}, len(defaultStopwordList))
	for _, w := range defaultStopwordList {
		m[w] = struct{}{}
	}
	return m
}

// LoadStopwords reads one word per line. Blank lines and lines starting with
// '#' are skipped. Words are lowercased.
func LoadStopwords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stopwords %s: %w", path, err)
	}
	defer f.Close()

	m := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m[strings.ToLower(line)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stopwords %s: %w", path, err)
	}
	return m, nil
}
