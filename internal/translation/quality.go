package translation

import (
	"regexp"
	"sort"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// Score computes a translation's quality score in [0, 1]: a 0.95 base,
// penalized for a no-op translation, a wildly different length ratio, or a
// mismatched set of HTML tags, with a small bonus for a length ratio close
// to 1 (most language pairs expand or contract text by a bounded amount).
func Score(source, translated string) float64 {
	score := 0.95

	if translated == source {
		score *= 0.1
	}

	if len(source) > 0 {
		ratio := float64(len(translated)) / float64(len(source))
		if ratio < 0.5 || ratio > 2.0 {
			score *= 0.7
		} else if ratio >= 0.7 && ratio <= 1.5 {
			score += 0.05
		}
	}

	if !sameTagSet(source, translated) {
		score *= 0.5
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func sameTagSet(a, b string) bool {
	return tagSetKey(a) == tagSetKey(b)
}

func tagSetKey(s string) string {
	tags := htmlTagPattern.FindAllString(s, -1)
	sort.Strings(tags)
	return strings.Join(tags, "")
}
