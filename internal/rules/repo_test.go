package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, body string) *Repo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return NewRepo(path)
}

const validRules = `
version: 1
rules:
  - name: api-overlap
    description: link api docs sharing tags
    trigger:
      tags: [api]
      mode: any
    target:
      min_shared_tags: 1
    action: append-reference
    strength: 0.6
    enabled: true
  - name: infra-suggest
    trigger:
      tags: [infra, cloud]
      mode: all
    target:
      min_shared_tags: 2
      min_overlap: 0.25
    action: suggest-only
    strength: 0.4
    enabled: false
`

func TestLoadValid(t *testing.T) {
	repo := writeRules(t, validRules)

	set, rejected, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("rejected = %v", rejected)
	}
	if len(set.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(set.Rules))
	}
	if set.Version != 1 {
		t.Errorf("version = %d, want 1", set.Version)
	}

	enabled := set.Enabled()
	if len(enabled) != 1 || enabled[0].Name != "api-overlap" {
		t.Errorf("enabled = %v", enabled)
	}
}

func TestLoadRejectsInvalidRecordsIndividually(t *testing.T) {
	repo := writeRules(t, `
rules:
  - name: good
    trigger: {tags: [a], mode: any}
    action: append-reference
    strength: 0.5
    enabled: true
  - name: bad-strength
    trigger: {tags: [a], mode: any}
    action: append-reference
    strength: 1.5
    enabled: true
  - name: bad-mode
    trigger: {tags: [a], mode: sometimes}
    action: append-reference
    strength: 0.5
    enabled: true
  - name: good
    trigger: {tags: [b], mode: any}
    action: suggest-only
    strength: 0.2
    enabled: true
`)

	set, rejected, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Rules) != 1 || set.Rules[0].Name != "good" {
		t.Fatalf("rules = %v, want only first good", set.Rules)
	}
	if len(rejected) != 3 {
		t.Fatalf("rejected = %d, want 3: %v", len(rejected), rejected)
	}

	byName := make(map[string]string)
	for _, rec := range rejected {
		byName[rec.Name] = rec.Err.Error()
	}
	if !strings.Contains(byName["bad-strength"], "out of range") {
		t.Errorf("bad-strength error = %q", byName["bad-strength"])
	}
	if !strings.Contains(byName["bad-mode"], "unknown trigger mode") {
		t.Errorf("bad-mode error = %q", byName["bad-mode"])
	}
	if !strings.Contains(byName["good"], "duplicate") {
		t.Errorf("duplicate error = %q", byName["good"])
	}
}

func TestLoadMissingFile(t *testing.T) {
	repo := NewRepo(filepath.Join(t.TempDir(), "nope.yaml"))
	_, _, err := repo.Load()
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveBumpsVersionAndRoundTrips(t *testing.T) {
	repo := writeRules(t, validRules)
	set, _, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	set.Rules[0].Strength = 0.7
	if err := repo.Save(set); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if set.Version != 2 {
		t.Errorf("in-memory version = %d, want 2", set.Version)
	}

	again, rejected, err := repo.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("rejected after save: %v", rejected)
	}
	if again.Version != 2 {
		t.Errorf("version = %d, want 2", again.Version)
	}
	if got := again.Find("api-overlap").Strength; got != 0.7 {
		t.Errorf("strength = %v, want 0.7", got)
	}
}

func TestValidate(t *testing.T) {
	base := Rule{
		Name:     "r",
		Trigger:  Trigger{Tags: []string{"a"}, Mode: ModeAny},
		Action:   ActionAppend,
		Strength: 0.5,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"empty name", func(r *Rule) { r.Name = " " }},
		{"negative strength", func(r *Rule) { r.Strength = -0.1 }},
		{"strength above one", func(r *Rule) { r.Strength = 1.01 }},
		{"missing mode", func(r *Rule) { r.Trigger.Mode = "" }},
		{"no trigger tags", func(r *Rule) { r.Trigger.Tags = nil }},
		{"blank trigger tag", func(r *Rule) { r.Trigger.Tags = []string{" "} }},
		{"bad action", func(r *Rule) { r.Action = "maybe" }},
		{"negative shared tags", func(r *Rule) { r.Target.MinSharedTags = -1 }},
		{"overlap above one", func(r *Rule) { r.Target.MinOverlap = 2 }},
		{"lexical above one", func(r *Rule) { r.Target.MinLexical = 2 }},
	}
	for _, tc := range cases {
		r := base
		tc.mutate(&r)
		if err := r.Validate(); err == nil {
			t.Errorf("%s: no error", tc.name)
		}
	}
}
