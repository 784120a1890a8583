package core

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Matcher scores a query against candidate strings. BestMatch returns the
// index of the highest-scoring candidate at or above threshold; ties keep
// the candidate that appears first.
type Matcher interface {
	BestMatch(query string, candidates []string, threshold float64) (index int, score float64, ok bool)
}

// RatioMatcher scores with Ratio.
type RatioMatcher struct{}

func (RatioMatcher) BestMatch(query string, candidates []string, threshold float64) (int, float64, bool) {
	best, bestScore := -1, -1.0
	for i, c := range candidates {
		if c == "" {
			continue
		}
		if s := Ratio(query, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < threshold {
		return -1, 0, false
	}
	return best, bestScore, true
}

// Ratio returns the normalized indel similarity of a and b in [0, 100]:
// 2*LCS / (len(a)+len(b)) * 100, with lengths counted in runes.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	return float64(2*edlib.LCS(a, b)) * 100 / float64(total)
}
