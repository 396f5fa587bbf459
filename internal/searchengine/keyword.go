package searchengine

import (
	"strings"
	"unicode"
)

// titleBoost weights title matches over body matches, mirroring the
// "title^2" field boost of the Elasticsearch query.
const titleBoost = 2.0

// Terms lowercases s and splits it into letter/digit runs.
func Terms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// fuzziness follows Elasticsearch's AUTO setting: exact match for one or two
// characters, one edit up to five, two beyond.
func fuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// keywordScore scores a chunk against query terms. Each query term adds its
// best match against the body, a title match counts titleBoost times; fuzzy
// matches count in proportion to how close they are.
func keywordScore(queryTerms []string, title, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	titleTerms := Terms(title)
	bodyTerms := Terms(text)

	var score float64
	for _, q := range queryTerms {
		score += bestMatch(q, bodyTerms) + titleBoost*bestMatch(q, titleTerms)
	}
	return score
}

func bestMatch(q string, terms []string) float64 {
	maxEdits := fuzziness(q)
	best := 0.0
	for _, t := range terms {
		if t == q {
			return 1
		}
		if maxEdits == 0 {
			continue
		}
		if d := editDistance(q, t, maxEdits); d <= maxEdits {
			if s := 1 - float64(d)/float64(maxEdits+1); s > best {
				best = s
			}
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b, or limit+1 once
// it is known to exceed limit.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
