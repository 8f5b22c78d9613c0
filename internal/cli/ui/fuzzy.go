package ui

import (
	"sort"
	"strings"
)

const (
	defaultMaxDistance    = 3
	defaultMaxSuggestions = 3
)

// FuzzyMatchOptions tunes suggestion matching.
type FuzzyMatchOptions struct {
	MaxDistance    int  // maximum edit distance considered (default 3)
	MaxSuggestions int  // maximum suggestions returned (default 3)
	CaseSensitive  bool // default false
}

// FindSimilar returns candidates within edit distance of target, closest
// first. Used to suggest corrections for mistyped arguments.
func FindSimilar(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	maxDist := defaultMaxDistance
	maxOut := defaultMaxSuggestions
	caseSensitive := false
	if opts != nil {
		if opts.MaxDistance > 0 {
			maxDist = opts.MaxDistance
		}
		if opts.MaxSuggestions > 0 {
			maxOut = opts.MaxSuggestions
		}
		caseSensitive = opts.CaseSensitive
	}

	type scored struct {
		value    string
		distance int
	}
	var matches []scored
	for _, cand := range candidates {
		a, b := target, cand
		if !caseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if d := LevenshteinDistance(a, b); d <= maxDist {
			matches = append(matches, scored{cand, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if len(matches) > maxOut {
		matches = matches[:maxOut]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// FindBestMatch returns the closest candidate, or "" when none is close.
func FindBestMatch(target string, candidates []string, opts *FuzzyMatchOptions) string {
	similar := FindSimilar(target, candidates, opts)
	if len(similar) == 0 {
		return ""
	}
	return similar[0]
}

// LevenshteinDistance computes the edit distance between two strings.
func LevenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = minOf(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
