package fallback

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

const minFuzzyLen = 4

// findMentioned returns the candidates named in the question, in
// candidate order. Exact (case-insensitive) substring matches win; when
// none exist, words of the question are fuzzy-matched against candidate
// names of at least four characters.
func findMentioned(question string, candidates []string) []string {
	q := strings.ToLower(question)
	var out []string
	for _, c := range candidates {
		if c != "" && strings.Contains(q, strings.ToLower(c)) {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out
	}

	var long []string
	for _, c := range candidates {
		if len(c) >= minFuzzyLen {
			long = append(long, strings.ToLower(c))
		}
	}
	if len(long) == 0 {
		return nil
	}

	hit := make(map[int]bool)
	for _, word := range strings.FieldsFunc(q, isSeparator) {
		if len(word) < minFuzzyLen {
			continue
		}
		for _, m := range fuzzy.Find(word, long) {
			// keep only tight matches: the word must appear almost contiguously
			idx := m.MatchedIndexes
			if len(idx) > 0 && idx[len(idx)-1]-idx[0]+1 <= len(word)+1 {
				hit[m.Index] = true
			}
		}
	}
	j := 0
	for _, c := range candidates {
		if len(c) < minFuzzyLen {
			continue
		}
		if hit[j] {
			out = append(out, c)
		}
		j++
	}
	return out
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r > 127)
}

// pick returns the first mentioned candidate, else the first candidate.
func pick(question string, candidates []string) string {
	if m := findMentioned(question, candidates); len(m) > 0 {
		return m[0]
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}
