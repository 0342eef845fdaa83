// Package rules implements the pre-retrieval rule engine: small hand-authored
// pattern groups (greetings, farewells, thanks) that answer an utterance
// before it reaches the index.
//
// Patterns are matched against the normalized token stream, so they must be
// authored in normalized form (lowercase, no punctuation, no stop words).
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// regexPrefix marks a phrase as a regular expression.
const regexPrefix = "re:"

// Pattern is a list of phrases that must all occur in the input.
// In YAML it is either a single phrase string or a sequence of phrases.
type Pattern []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = Pattern{value.Value}
		return nil
	case yaml.SequenceNode:
		var phrases []string
		if err := value.Decode(&phrases); err != nil {
			return err
		}
		*p = phrases
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a string or a list of strings", value.Line)
	}
}

// Group is a named bundle of trigger patterns and response templates.
type Group struct {
	Name      string    `yaml:"name"`
	Patterns  []Pattern `yaml:"patterns"`
	Responses []string  `yaml:"responses"`
}

// File is the on-disk rule document.
type File struct {
	Groups []Group `yaml:"groups"`
}

// Match is a successful rule hit. Confidence is always 1.
type Match struct {
	Group      string
	Response   string
	Confidence float64
}

type phrase struct {
	tokens []string
	re     *regexp.Regexp
}

type compiledGroup struct {
	name      string
	patterns  [][]phrase
	responses []string
}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	groups []compiledGroup
}

// New compiles groups in declared order. A group without patterns is kept
// but never matches; a group with patterns must have responses.
func New(groups []Group) (*Engine, error) {
	e := &Engine{}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, errors.New("rule group without a name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate rule group %q", name)
		}
		seen[name] = struct{}{}
		if len(g.Patterns) > 0 && len(g.Responses) == 0 {
			return nil, fmt.Errorf("rule group %q has patterns but no responses", name)
		}

		cg := compiledGroup{name: name, responses: append([]string(nil), g.Responses...)}
		for _, p := range g.Patterns {
			var cp []phrase
			for _, raw := range p {
				ph, err := compilePhrase(raw)
				if err != nil {
					return nil, fmt.Errorf("rule group %q: %w", name, err)
				}
				cp = append(cp, ph)
			}
			if len(cp) > 0 {
				cg.patterns = append(cg.patterns, cp)
			}
		}
		e.groups = append(e.groups, cg)
	}
	return e, nil
}

// Load reads and compiles a YAML rule file.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	e, err := New(f.Groups)
	if err != nil {
		return nil, fmt.Errorf("compile rules %s: %w", path, err)
	}
	return e, nil
}

// Default returns an engine with the built-in groups.
func Default() *Engine {
	e, err := New(DefaultGroups())
	if err != nil {
		panic("rules: built-in groups invalid: " + err.Error())
	}
	return e
}

// TryMatch consults groups in declared order and returns the first hit. The
// response is chosen by rotating through the group's templates with turn.
func (e *Engine) TryMatch(tokens []string, turn int) (Match, bool) {
	if e == nil || len(tokens) == 0 {
		return Match{}, false
	}
	joined := strings.Join(tokens, " ")
	for _, g := range e.groups {
		for _, p := range g.patterns {
			if !matchAll(p, tokens, joined) {
				continue
			}
			if turn < 0 {
				turn = -turn
			}
			return Match{
				Group:      g.name,
				Response:   g.responses[turn%len(g.responses)],
				Confidence: 1.0,
			}, true
		}
	}
	return Match{}, false
}

// Groups returns the group names in declared order.
func (e *Engine) Groups() []string {
	names := make([]string, 0, len(e.groups))
	for _, g := range e.groups {
		names = append(names, g.name)
	}
	return names
}

func compilePhrase(raw string) (phrase, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, regexPrefix) {
		expr := strings.TrimSpace(strings.TrimPrefix(raw, regexPrefix))
		if expr == "" {
			return phrase{}, errors.New("empty regular expression")
		}
		re, err := regexp.Compile(`(?:^| )(?:` + expr + `)(?: |$)`)
		if err != nil {
			return phrase{}, fmt.Errorf("compile %q: %w", expr, err)
		}
		return phrase{re: re}, nil
	}
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return phrase{}, errors.New("empty phrase")
	}
	return phrase{tokens: tokens}, nil
}

func matchAll(p []phrase, tokens []string, joined string) bool {
	for _, ph := range p {
		if ph.re != nil {
			if !ph.re.MatchString(joined) {
				return false
			}
			continue
		}
		if !containsRun(tokens, ph.tokens) {
			return false
		}
	}
	return true
}

// containsRun reports whether needle occurs as a contiguous run of whole
// tokens in haystack.
func containsRun(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
