// Package correlate computes pairwise tag association across the corpus,
// independent of any rule. Read-side only; output is advisory input for
// the optimizer and is recomputed every cycle.
package correlate

import (
	"sort"

	"github.com/strandworks/crosslink/internal/vault"
)

// Pair is a tag co-occurrence association. Score is the Jaccard index
// over the two tags' document-membership sets. Samples is the number of
// documents carrying both tags.
type Pair struct {
	TagA    string  `json:"tag_a"`
	TagB    string  `json:"tag_b"`
	Score   float64 `json:"score"`
	Samples int     `json:"samples"`
}

// Options bounds the output.
type Options struct {
	MinJointSamples int     // pairs seen together in fewer docs are dropped
	MinScore        float64 // association floor
	MaxPairs        int     // 0 = unbounded
}

// Pairs computes tag associations over the snapshot, sorted by score
// descending (ties by tag names ascending). Sparse pairs are excluded
// rather than reported as errors.
func Pairs(docs []vault.Document, opts Options) []Pair {
	members := make(map[string]map[int]bool)
	for i := range docs {
		for _, t := range docs[i].Tags {
			set := members[t]
			if set == nil {
				set = make(map[int]bool)
				members[t] = set
			}
			set[i] = true
		}
	}

	tags := make([]string, 0, len(members))
	for t := range members {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	var out []Pair
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			a, b := members[tags[i]], members[tags[j]]
			joint := 0
			for doc := range a {
				if b[doc] {
					joint++
				}
			}
			if joint < opts.MinJointSamples || joint == 0 {
				continue
			}
			union := len(a) + len(b) - joint
			score := float64(joint) / float64(union)
			if score < opts.MinScore {
				continue
			}
			out = append(out, Pair{TagA: tags[i], TagB: tags[j], Score: score, Samples: joint})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].TagA != out[j].TagA {
			return out[i].TagA < out[j].TagA
		}
		return out[i].TagB < out[j].TagB
	})

	if opts.MaxPairs > 0 && len(out) > opts.MaxPairs {
		out = out[:opts.MaxPairs]
	}
	return out
}
