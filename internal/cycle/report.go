package cycle

import (
	"fmt"
	"strings"
	"time"
)

// Report is the immutable result of one orchestrator run.
type Report struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Interrupted bool      `json:"interrupted,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"` // optimizer ran without outcome history

	Documents int `json:"documents"`
	Matches   int `json:"matches"`
	Strong    int `json:"strong"`
	Medium    int `json:"medium"`
	Weak      int `json:"weak"`

	Applied       int `json:"applied"`        // references written this cycle
	AlreadyLinked int `json:"already_linked"` // matches whose reference already existed
	Suggested     int `json:"suggested"`      // suggest-only matches, never written

	RulesFired   map[string]int `json:"rules_fired,omitempty"`
	SkippedRules []string       `json:"skipped_rules,omitempty"` // unevaluable triggers
	InvalidRules []string       `json:"invalid_rules,omitempty"` // rejected at load

	Promoted []string `json:"promoted,omitempty"`
	Demoted  []string `json:"demoted,omitempty"`
	Disabled []string `json:"disabled,omitempty"`
	Created  []string `json:"created,omitempty"`

	Touched  []string          `json:"touched,omitempty"` // documents whose references changed
	Failures []DocumentFailure `json:"failures,omitempty"`
}

// DocumentFailure records one document that could not be read or written.
type DocumentFailure struct {
	Document string `json:"document"`
	Err      string `json:"error"`
}

// Summary renders the short human-readable form of the report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s: %d documents, %d matches (%d strong / %d medium / %d weak)\n",
		r.CycleID, r.Documents, r.Matches, r.Strong, r.Medium, r.Weak)
	fmt.Fprintf(&b, "  applied %d, already linked %d, suggested %d\n",
		r.Applied, r.AlreadyLinked, r.Suggested)
	if len(r.Promoted)+len(r.Demoted)+len(r.Created) > 0 {
		fmt.Fprintf(&b, "  rules: %d promoted, %d demoted (%d disabled), %d created\n",
			len(r.Promoted), len(r.Demoted), len(r.Disabled), len(r.Created))
	}
	if r.Degraded {
		b.WriteString("  degraded optimization: no outcome history, synthesis only\n")
	}
	if r.Interrupted {
		b.WriteString("  interrupted before completion\n")
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "  %d document failures\n", len(r.Failures))
	}
	return strings.TrimRight(b.String(), "\n")
}
