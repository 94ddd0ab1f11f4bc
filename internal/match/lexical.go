package match

import "strings"

// lexicalSimilarity is a cheap Jaccard index over word bigrams of the
// two document bodies. No embeddings, no NLU; just token overlap. Used
// only when a rule sets a min_lexical gate.
func lexicalSimilarity(a, b string) float64 {
	ba := wordBigrams(a)
	bb := wordBigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	shared := 0
	for bg := range ba {
		if bb[bg] {
			shared++
		}
	}
	union := len(ba) + len(bb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func wordBigrams(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	if len(words) < 2 {
		return nil
	}
	m := make(map[string]bool, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		m[words[i]+" "+words[i+1]] = true
	}
	return m
}
