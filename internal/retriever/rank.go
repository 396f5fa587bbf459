package retriever

import (
	"sort"
	"strings"
	"unicode"
)

// Dedupe keeps the highest-scoring result per chunk id and returns them
// ordered by descending score, ties by chunk id. Applying it twice yields
// the same list.
func Dedupe(results []Result) []Result {
	best := make(map[int64]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		i, ok := best[r.Chunk.ChunkID]
		if !ok {
			best[r.Chunk.ChunkID] = len(out)
			out = append(out, r)
			continue
		}
		if effective(r) > effective(out[i]) {
			out[i] = r
		}
	}
	sortResults(out)
	return out
}

// Rerank boosts each result by perTerm of its base score for every query
// word longer than three characters found in the chunk text, capped at
// maxBoost, then sorts by the boosted score.
func Rerank(query string, results []Result, perTerm, maxBoost float64) []Result {
	words := queryWords(query)

	out := make([]Result, len(results))
	for i, r := range results {
		text := strings.ToLower(r.Chunk.Text)
		boost := 0.0
		for _, w := range words {
			if strings.Contains(text, w) {
				boost += perTerm
			}
		}
		boost = min(boost, maxBoost)
		s := r.Score * (1 + boost)
		r.RerankScore = &s
		out[i] = r
	}
	sortResults(out)
	return out
}

// queryWords returns the distinct lowercased whitespace-separated words of
// query longer than three characters. Punctuation at the edges of a word is
// dropped; inner hyphens and apostrophes are kept ("check-in").
func queryWords(query string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(w)) > 3 && !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	return words
}

func effective(r Result) float64 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.Score
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		ei, ej := effective(rs[i]), effective(rs[j])
		if ei != ej {
			return ei > ej
		}
		return rs[i].Chunk.ChunkID < rs[j].Chunk.ChunkID
	})
}
