package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// MatchResult is the winning rule for a text.
type MatchResult struct {
	Pattern  string
	Category Category
	Priority int
	Override bool
}

// Engine matches every rule in one pass over the text using Aho-Corasick.
// Patterns of four characters or fewer must stand as whole words, so OLA
// does not fire on COLA.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]MatchResult
	mu       sync.RWMutex
}

// NewEngine builds an engine from the given rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// NewDefaultEngine builds the keyword engine plus the owner's overrides.
func NewDefaultEngine(overrides map[string]Category) *Engine {
	return NewEngine(append(OverrideRules(overrides), DefaultRules()...))
}

// Build replaces the rule set. Rules sharing a pattern are grouped.
func (e *Engine) Build(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	index := make(map[string]int, len(rules))
	patterns := make([]string, 0, len(rules))
	metadata := make([][]MatchResult, 0, len(rules))

	for _, r := range rules {
		p := strings.ToUpper(strings.TrimSpace(r.Pattern))
		if p == "" {
			continue
		}
		m := MatchResult{Pattern: p, Category: r.Category, Priority: r.Priority, Override: r.Override}
		if idx, ok := index[p]; ok {
			metadata[idx] = append(metadata[idx], m)
			continue
		}
		index[p] = len(patterns)
		patterns = append(patterns, p)
		metadata = append(metadata, []MatchResult{m})
	}

	e.patterns = patterns
	e.metadata = metadata
	e.matcher = nil
	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(patterns)
	}
}

// Match returns the highest-priority rule found in text, longer patterns
// breaking ties, or nil.
func (e *Engine) Match(text string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil {
		return nil
	}

	upper := strings.ToUpper(text)
	var best *MatchResult
	for _, idx := range e.matcher.Match([]byte(upper)) {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		if len(e.patterns[idx]) <= 4 && !wordMatch(upper, e.patterns[idx]) {
			continue
		}
		for i := range e.metadata[idx] {
			m := e.metadata[idx][i]
			if best == nil || m.Priority > best.Priority ||
				(m.Priority == best.Priority && len(m.Pattern) > len(best.Pattern)) {
				best = &m
			}
		}
	}
	return best
}

// PatternCount returns the number of distinct patterns loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// wordMatch reports whether pattern occurs in text with no letter or digit
// on either side.
func wordMatch(text, pattern string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], pattern)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(pattern)
		if (start == 0 || !isAlnum(text[start-1])) && (end == len(text) || !isAlnum(text[end])) {
			return true
		}
		offset = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
