package rank

import "strings"

// Fuzzy match scores, highest to lowest tier. Within the subsequence and
// similarity tiers the score is scaled by match quality, so tiers never
// overlap and an exact match always beats a prefix, a prefix a substring,
// and so on.
const (
	scoreExact      = 1.0
	scorePrefix     = 0.9
	scoreSubstring  = 0.75
	scoreSubseqMax  = 0.6
	scoreSimilarMax = 0.4

	// similarityFloor is the minimum Damerau-Levenshtein similarity that
	// still counts as a match. Below it the candidate scores zero.
	similarityFloor = 0.6
)

// FuzzyScore computes a relevance score in [0, 1] between a query and a
// single text field. Matching is case-insensitive and tolerant of typos
// and partial input.
func FuzzyScore(query, text string) float64 {
	if query == "" || text == "" {
		return 0
	}

	q := strings.ToLower(query)
	t := strings.ToLower(text)

	if q == t {
		return scoreExact
	}
	if strings.HasPrefix(t, q) {
		return scorePrefix
	}
	if strings.Contains(t, q) {
		return scoreSubstring
	}

	if density, ok := subsequenceDensity(q, t); ok {
		return scoreSubseqMax * density
	}

	if sim := similarity(q, t); sim >= similarityFloor {
		return scoreSimilarMax * sim
	}
	return 0
}

// subsequenceDensity reports whether every rune of q appears in t in order,
// and how tightly packed the matched span is. "ngx1" matches "nginx-1" with
// a density well below 1; "nginx" against "nginx-1" is caught earlier by
// the prefix tier.
func subsequenceDensity(q, t string) (float64, bool) {
	qr := []rune(q)
	tr := []rune(t)
	if len(qr) > len(tr) {
		return 0, false
	}

	qi := 0
	first, last := -1, -1
	for ti := 0; ti < len(tr) && qi < len(qr); ti++ {
		if tr[ti] == qr[qi] {
			if first < 0 {
				first = ti
			}
			last = ti
			qi++
		}
	}
	if qi < len(qr) {
		return 0, false
	}

	span := last - first + 1
	return float64(len(qr)) / float64(span), true
}

// similarity computes a score between 0 and 1 based on Damerau-Levenshtein
// distance. 1.0 means identical, 0.0 means completely different.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	return 1.0 - float64(damerauLevenshtein(a, b))/float64(maxLen)
}

// damerauLevenshtein computes the Damerau-Levenshtein edit distance: the
// minimum number of insertions, deletions, substitutions, and adjacent
// transpositions required to change one string into the other.
func damerauLevenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Runes for proper Unicode handling
	runesA := []rune(a)
	runesB := []rune(b)

	lenA := len(runesA)
	lenB := len(runesB)

	d := make([][]int, lenA+1)
	for i := range d {
		d[i] = make([]int, lenB+1)
	}

	for i := 0; i <= lenA; i++ {
		d[i][0] = i
	}
	for j := 0; j <= lenB; j++ {
		d[0][j] = j
	}

	for i := 1; i <= lenA; i++ {
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			d[i][j] = min(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)

			// Transposition
			if i > 1 && j > 1 && runesA[i-1] == runesB[j-2] && runesA[i-2] == runesB[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}

	return d[lenA][lenB]
}
