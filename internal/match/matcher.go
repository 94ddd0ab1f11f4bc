// Package match evaluates the enabled rule set against a document
// snapshot and produces scored link candidates. It is pure: no I/O, no
// mutation, deterministic output for a fixed snapshot and rule set.
package match

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/strandworks/crosslink/internal/rules"
	"github.com/strandworks/crosslink/internal/vault"
)

// Match is one proposed link between two documents.
type Match struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Rule     string  `json:"rule"`
	Strength float64 `json:"strength"`
	Reason   string  `json:"reason"`
	Action   string  `json:"action"`
}

// Options controls candidate filtering.
type Options struct {
	MinStrength float64
}

// Result carries the matches plus the names of rules that were skipped
// as unevaluable (resolution errors, never fatal).
type Result struct {
	Matches      []Match
	SkippedRules []string
	Fired        map[string]int // matches produced per rule
}

// Run evaluates every enabled rule against every document pair.
//
// Strength of a match is the rule's base strength scaled by the tag
// overlap ratio (shared / union), clamped to [0,1]. Matches below
// opts.MinStrength are dropped. Output order is stable: strength
// descending, then rule name, source, target ascending.
func Run(docs []vault.Document, active []rules.Rule, opts Options) Result {
	res := Result{Fired: make(map[string]int)}

	tagSets := make([]map[string]bool, len(docs))
	for i := range docs {
		tagSets[i] = docs[i].TagSet()
	}

	for _, rule := range active {
		if err := rule.Validate(); err != nil {
			// Shape problems are normally caught at load; this guards
			// against rules constructed programmatically.
			log.Printf("match: skipping rule %q: %v", rule.Name, err)
			res.SkippedRules = append(res.SkippedRules, rule.Name)
			continue
		}

		for si := range docs {
			if !triggerFires(tagSets[si], rule.Trigger) {
				continue
			}
			for ti := range docs {
				if ti == si {
					continue
				}
				shared, union := overlap(tagSets[si], tagSets[ti])
				if shared < rule.Target.MinSharedTags || shared == 0 {
					continue
				}
				ratio := 0.0
				if union > 0 {
					ratio = float64(shared) / float64(union)
				}
				if ratio < rule.Target.MinOverlap {
					continue
				}
				if rule.Target.MinLexical > 0 &&
					lexicalSimilarity(docs[si].Body, docs[ti].Body) < rule.Target.MinLexical {
					continue
				}

				strength := clamp01(rule.Strength * ratio)
				if strength < opts.MinStrength {
					continue
				}

				res.Matches = append(res.Matches, Match{
					Source:   docs[si].ID,
					Target:   docs[ti].ID,
					Rule:     rule.Name,
					Strength: strength,
					Reason:   reason(tagSets[si], docs[ti], shared, union),
					Action:   rule.Action,
				})
				res.Fired[rule.Name]++
			}
		}
	}

	sort.Slice(res.Matches, func(i, j int) bool {
		a, b := res.Matches[i], res.Matches[j]
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})

	return res
}

func triggerFires(tags map[string]bool, t rules.Trigger) bool {
	switch t.Mode {
	case rules.ModeAll:
		for _, tag := range t.Tags {
			if !tags[vault.NormalizeTag(tag)] {
				return false
			}
		}
		return true
	default: // ModeAny
		for _, tag := range t.Tags {
			if tags[vault.NormalizeTag(tag)] {
				return true
			}
		}
		return false
	}
}

// overlap returns |a ∩ b| and |a ∪ b|.
func overlap(a, b map[string]bool) (shared, union int) {
	union = len(b)
	for t := range a {
		if b[t] {
			shared++
		} else {
			union++
		}
	}
	return shared, union
}

func reason(sourceTags map[string]bool, target vault.Document, shared, union int) string {
	var names []string
	for _, t := range target.Tags {
		if sourceTags[t] {
			names = append(names, t)
		}
	}
	sort.Strings(names)
	return fmt.Sprintf("shares %d of %d tags (%s)", shared, union, strings.Join(names, ", "))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
