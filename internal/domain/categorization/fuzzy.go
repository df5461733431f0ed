package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FuzzyMatch is a fuzzy hit with its similarity score (0-100).
type FuzzyMatch struct {
	Pattern  string
	Category Category
	Score    int
	Distance int
}

// FuzzyMatcher catches merchant spellings the keyword pass misses, such as
// "SWIGY" or "ZOMATO LTD BLR". It scores every known pattern, so it is only
// used for the small set of transactions left uncategorized.
type FuzzyMatcher struct {
	patterns []fuzzyPattern
	mu       sync.RWMutex
}

type fuzzyPattern struct {
	normalized string
	category   Category
	priority   int
}

// NewFuzzyMatcher builds a matcher over rules. Transfer and income keywords
// are skipped; they are banking terms, not merchants.
func NewFuzzyMatcher(rules []Rule) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules)
	return fm
}

// Build replaces the pattern set.
func (fm *FuzzyMatcher) Build(rules []Rule) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.patterns = make([]fuzzyPattern, 0, len(rules))
	for _, r := range rules {
		if r.Category == Transfer || r.Category == Income {
			continue
		}
		p := strings.ToUpper(strings.TrimSpace(r.Pattern))
		// Short keywords match too much by edit distance.
		if len(p) < 5 {
			continue
		}
		fm.patterns = append(fm.patterns, fuzzyPattern{normalized: p, category: r.Category, priority: r.Priority})
	}
}

// Match finds the best pattern scoring at least threshold, or nil.
func (fm *FuzzyMatcher) Match(text string, threshold int) *FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	var (
		best         *FuzzyMatch
		bestPriority int
	)
	for _, p := range fm.patterns {
		score := bestWordScore(normalized, p.normalized)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score || (score == best.Score && p.priority > bestPriority) {
			best = &FuzzyMatch{
				Pattern:  p.normalized,
				Category: p.category,
				Score:    score,
				Distance: levenshteinDistance(normalized, p.normalized),
			}
			bestPriority = p.priority
		}
	}
	return best
}

// RankMatches returns patterns ranked by similarity to text.
func (fm *FuzzyMatcher) RankMatches(text string, limit int) []FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	normalized := strings.ToUpper(strings.TrimSpace(text))
	results := make([]FuzzyMatch, 0, len(fm.patterns))
	for _, p := range fm.patterns {
		results = append(results, FuzzyMatch{
			Pattern:  p.normalized,
			Category: p.category,
			Score:    bestWordScore(normalized, p.normalized),
			Distance: levenshteinDistance(normalized, p.normalized),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// PatternCount returns the number of patterns in the matcher.
func (fm *FuzzyMatcher) PatternCount() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.patterns)
}

// bestWordScore scores the pattern against the whole text and against each
// word window of the pattern's word count, keeping the best.
func bestWordScore(text, pattern string) int {
	best := fuzzyScore(text, pattern)

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.')
	})
	n := len(strings.Fields(pattern))
	for i := 0; i+n <= len(words); i++ {
		if s := fuzzyScore(strings.Join(words[i:i+n], " "), pattern); s > best {
			best = s
		}
	}
	return best
}

// fuzzyScore calculates a similarity score between two strings (0-100) from
// containment, Levenshtein distance and subsequence ranking.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	fuzzyLibScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, fuzzyLibScore)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
