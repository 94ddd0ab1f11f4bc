// Package rules loads, validates, and persists the linking rule set.
package rules

import (
	"fmt"
	"strings"
)

// Trigger match modes.
const (
	ModeAny = "any" // document qualifies if it carries any trigger tag
	ModeAll = "all" // document must carry every trigger tag
)

// Rule actions.
const (
	ActionAppend  = "append-reference"
	ActionSuggest = "suggest-only"
)

// Trigger is the predicate deciding which documents qualify as sources.
type Trigger struct {
	Tags []string `yaml:"tags"`
	Mode string   `yaml:"mode"`
}

// Target selects which documents a qualifying source should link to.
type Target struct {
	MinSharedTags int     `yaml:"min_shared_tags"`
	MinOverlap    float64 `yaml:"min_overlap"`           // Jaccard floor over tag sets
	MinLexical    float64 `yaml:"min_lexical,omitempty"` // body bigram-overlap floor, 0 = off
}

// Rule is one immutable linking rule. The optimizer never patches rules
// in place; it produces a replacement collection.
type Rule struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Trigger     Trigger `yaml:"trigger"`
	Target      Target  `yaml:"target"`
	Action      string  `yaml:"action"`
	Strength    float64 `yaml:"strength"`
	Enabled     bool    `yaml:"enabled"`
}

// Validate checks a single rule record's shape.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("empty name")
	}
	if r.Strength < 0 || r.Strength > 1 {
		return fmt.Errorf("strength %.3f out of range [0,1]", r.Strength)
	}
	switch r.Trigger.Mode {
	case ModeAny, ModeAll:
	case "":
		return fmt.Errorf("missing trigger mode")
	default:
		return fmt.Errorf("unknown trigger mode %q", r.Trigger.Mode)
	}
	if len(r.Trigger.Tags) == 0 {
		return fmt.Errorf("trigger has no tags")
	}
	for _, t := range r.Trigger.Tags {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("blank trigger tag")
		}
	}
	switch r.Action {
	case ActionAppend, ActionSuggest:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.Target.MinSharedTags < 0 {
		return fmt.Errorf("negative min_shared_tags")
	}
	if r.Target.MinOverlap < 0 || r.Target.MinOverlap > 1 {
		return fmt.Errorf("min_overlap %.3f out of range [0,1]", r.Target.MinOverlap)
	}
	if r.Target.MinLexical < 0 || r.Target.MinLexical > 1 {
		return fmt.Errorf("min_lexical %.3f out of range [0,1]", r.Target.MinLexical)
	}
	return nil
}

// Set is a loaded rule collection. Version increments on every persist.
type Set struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Enabled returns the subset of rules eligible for matching.
func (s *Set) Enabled() []Rule {
	var out []Rule
	for _, r := range s.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the rule with the given name, or nil.
func (s *Set) Find(name string) *Rule {
	for i := range s.Rules {
		if s.Rules[i].Name == name {
			return &s.Rules[i]
		}
	}
	return nil
}
