// Package importer reads plain-text FAQ corpora:
//
//	Q: How do I reset my password?
//	A: Use the "forgot password" link
//	   on the login page.
//	Category: account
//	Tags: password, login
//
// Blocks are separated by blank lines. Lines without a field prefix continue
// the previous field. Lines starting with '#' are comments.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"faqbot/internal/domain"
)

// Entry is one parsed FAQ block.
type Entry struct {
	Question string
	Answer   string
	Category string
	Tags     []string
	Line     int
}

var fieldRe = regexp.MustCompile(`^(?i)(q|question|a|answer|category|tags)\s*:\s*(.*)$`)

// ParseFile parses the corpus at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse reads blocks from r. A block without a question or an answer is an
// error wrapping domain.ErrInvalidInput.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		cur     Entry
		field   *string
		open    bool
		lineNo  int
	)
	flush := func() error {
		if !open {
			return nil
		}
		cur.Question = strings.TrimSpace(cur.Question)
		cur.Answer = strings.TrimSpace(cur.Answer)
		if cur.Question == "" || cur.Answer == "" {
			return fmt.Errorf("%w: block at line %d needs both Q: and A:", domain.ErrInvalidInput, cur.Line)
		}
		entries = append(entries, cur)
		cur, field, open = Entry{}, nil, false
		return nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case strings.HasPrefix(trimmed, "#"):
			continue
		}

		if !open {
			cur = Entry{Line: lineNo}
			open = true
		}
		m := fieldRe.FindStringSubmatch(trimmed)
		if m == nil {
			if field == nil {
				return nil, fmt.Errorf("%w: line %d: expected Q:, A:, Category: or Tags:", domain.ErrInvalidInput, lineNo)
			}
			*field += "\n" + trimmed
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "q", "question":
			if cur.Question != "" {
				return nil, fmt.Errorf("%w: line %d: second question in one block", domain.ErrInvalidInput, lineNo)
			}
			cur.Question, field = value, &cur.Question
		case "a", "answer":
			cur.Answer, field = value, &cur.Answer
		case "category":
			cur.Category, field = value, nil
		case "tags":
			cur.Tags, field = splitTags(value), nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
