// Package optimize adjusts rule strengths from observed outcomes and
// synthesizes candidate rules from correlation output. All mutation of
// the rule set is isolated here, behind a pure function: the input
// collection is never modified, a replacement is returned.
package optimize

import (
	"fmt"

	"github.com/strandworks/crosslink/internal/correlate"
	"github.com/strandworks/crosslink/internal/rules"
	"github.com/strandworks/crosslink/internal/vault"
)

// RuleStats summarizes one rule's history over the stats window.
type RuleStats struct {
	Fired    int // matches produced
	Applied  int // references written, outcome still pending
	Retained int // survived the retention window unreversed
	Reversed int // explicitly reversed by an operator
}

// Stats maps rule name to history. Fired counts alone are not history:
// until at least one outcome row exists in the window, the optimizer
// runs in degraded mode.
type Stats map[string]RuleStats

// Options holds the tuning knobs. MaxDelta is the damping invariant: no
// rule's strength moves by more than this in one cycle.
type Options struct {
	MaxDelta           float64
	PromoteRatio       float64 // retained/(retained+reversed) needed to promote
	DemoteRatio        float64 // reversed/(retained+reversed) forcing a demotion
	MinDecisions       int     // resolved outcomes required before promote/demote
	StrengthFloor      float64 // below this the rule is disabled, not deleted
	SynthesisThreshold float64 // correlation score required to propose a rule
	SynthesisStrength  float64 // initial strength for synthesized rules
}

// Result is the optimizer's output: a replacement rule collection plus
// an audit of what changed.
type Result struct {
	Rules    []rules.Rule
	Promoted []string
	Demoted  []string
	Disabled []string
	Created  []string
	Degraded bool // promotion/demotion skipped: empty outcome log
}

// Run produces the updated rule set. It never enables a rule: promotion
// raises strength (bounded at 1.0), demotion lowers it (disabling below
// the floor), and synthesized rules are created enabled=false pending
// manual review.
func Run(set []rules.Rule, stats Stats, pairs []correlate.Pair, opts Options) Result {
	res := Result{Rules: make([]rules.Rule, len(set))}
	copy(res.Rules, set)

	res.Degraded = !hasOutcomeHistory(stats)
	if !res.Degraded {
		for i := range res.Rules {
			r := &res.Rules[i]
			if !r.Enabled {
				continue
			}
			s := stats[r.Name]
			decisions := s.Retained + s.Reversed

			switch {
			case decisions >= opts.MinDecisions &&
				float64(s.Reversed)/float64(decisions) >= opts.DemoteRatio:
				demote(r, &res, opts)
			case s.Fired == 0 && s.Applied == 0 && decisions == 0:
				// The rule has gone quiet over the whole window.
				demote(r, &res, opts)
			case decisions >= opts.MinDecisions &&
				float64(s.Retained)/float64(decisions) >= opts.PromoteRatio:
				r.Strength = clamp01(r.Strength + opts.MaxDelta)
				res.Promoted = append(res.Promoted, r.Name)
			}
		}
	}

	res.Created = synthesize(&res.Rules, pairs, opts)
	return res
}

// hasOutcomeHistory reports whether any rule has outcome rows in the
// window. Fires say nothing about link quality, so they do not lift
// degraded mode: a corpus of suggest-only rules never leaves it.
func hasOutcomeHistory(stats Stats) bool {
	for _, s := range stats {
		if s.Applied+s.Retained+s.Reversed > 0 {
			return true
		}
	}
	return false
}

func demote(r *rules.Rule, res *Result, opts Options) {
	r.Strength = clamp01(r.Strength - opts.MaxDelta)
	res.Demoted = append(res.Demoted, r.Name)
	if r.Strength < opts.StrengthFloor {
		r.Enabled = false
		res.Disabled = append(res.Disabled, r.Name)
	}
}

// synthesize proposes rules for high-confidence correlations not covered
// by any enabled rule's trigger. Candidates are suggest-only and
// disabled: enabling is a human decision.
func synthesize(set *[]rules.Rule, pairs []correlate.Pair, opts Options) []string {
	names := make(map[string]bool, len(*set))
	for _, r := range *set {
		names[r.Name] = true
	}

	var created []string
	for _, p := range pairs {
		if p.Score < opts.SynthesisThreshold {
			break // pairs are sorted by score
		}
		if covered(*set, p) {
			continue
		}
		name := synthName(p)
		if names[name] {
			continue
		}
		names[name] = true

		*set = append(*set, rules.Rule{
			Name:        name,
			Description: fmt.Sprintf("synthesized from tag correlation %.2f over %d documents", p.Score, p.Samples),
			Trigger:     rules.Trigger{Tags: []string{p.TagA, p.TagB}, Mode: rules.ModeAll},
			Target:      rules.Target{MinSharedTags: 2},
			Action:      rules.ActionSuggest,
			Strength:    clamp01(opts.SynthesisStrength),
			Enabled:     false,
		})
		created = append(created, name)
	}
	return created
}

// covered reports whether an enabled rule's trigger already reacts to
// either tag of the pair with a target selector loose enough to connect
// documents carrying both. Trigger tags are operator-written and may be
// unnormalized; correlation tags are always normalized.
func covered(set []rules.Rule, p correlate.Pair) bool {
	for _, r := range set {
		if !r.Enabled || r.Target.MinSharedTags > 2 {
			continue
		}
		for _, t := range r.Trigger.Tags {
			t = vault.NormalizeTag(t)
			if t == p.TagA || t == p.TagB {
				return true
			}
		}
	}
	return false
}

func synthName(p correlate.Pair) string {
	a, b := p.TagA, p.TagB
	if b < a {
		a, b = b, a
	}
	return "auto/" + a + "+" + b
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
