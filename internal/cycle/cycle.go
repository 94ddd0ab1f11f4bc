// Package cycle orchestrates one end-to-end pass: load documents and
// rules, match, apply references, log outcomes, correlate, optimize,
// persist. Cycles are serial; an advisory lock rejects overlap.
package cycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/strandworks/crosslink/internal/config"
	"github.com/strandworks/crosslink/internal/correlate"
	"github.com/strandworks/crosslink/internal/match"
	"github.com/strandworks/crosslink/internal/optimize"
	"github.com/strandworks/crosslink/internal/rules"
	"github.com/strandworks/crosslink/internal/store"
	"github.com/strandworks/crosslink/internal/vault"
)

// Runner executes cycles against one configuration.
type Runner struct {
	cfg    config.Config
	db     *store.DB
	vaults *vault.Store
	repo   *rules.Repo
	node   *snowflake.Node
}

// New creates a Runner. The store connection is shared with the caller
// and not closed by the Runner.
func New(cfg config.Config, db *store.DB) (*Runner, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &Runner{
		cfg:    cfg,
		db:     db,
		vaults: vault.New(cfg.Vaults, cfg.Matcher.ReadConcurrency),
		repo:   rules.NewRepo(cfg.Rules.Path),
		node:   node,
	}, nil
}

// RulesPath returns the rule file path the Runner operates on.
func (r *Runner) RulesPath() string {
	return r.repo.Path()
}

// Rules loads the current rule collection for inspection.
func (r *Runner) Rules() (*rules.Set, []rules.RecordError, error) {
	return r.repo.Load()
}

// Validate loads the rule file without running a cycle. It returns the
// per-record validation errors; err is non-nil only when the file itself
// cannot be read or parsed.
func (r *Runner) Validate() ([]rules.RecordError, error) {
	_, rejected, err := r.repo.Load()
	return rejected, err
}

// Run executes exactly one cycle and returns its report. Only a lock
// conflict or a rule repository load failure is fatal; every other
// failure is recorded in the report and the cycle continues.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	release, err := acquireLock(r.repo.Path())
	if err != nil {
		return nil, err
	}
	defer release()

	cycleID := r.node.Generate()
	report := &Report{
		CycleID:   cycleID.String(),
		StartedAt: time.Now().UTC(),
	}

	set, rejected, err := r.repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	for _, rec := range rejected {
		log.Printf("cycle: invalid rule %q: %v", rec.Name, rec.Err)
		report.InvalidRules = append(report.InvalidRules, rec.Name)
	}

	docs, readFailures, err := r.vaults.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Stopped during the read phase: nothing was written, so
			// report the interruption instead of failing the cycle.
			report.Interrupted = true
			report.FinishedAt = time.Now().UTC()
			r.persistReport(cycleID.Int64(), report)
			return report, nil
		}
		return nil, fmt.Errorf("load documents: %w", err)
	}
	for _, f := range readFailures {
		report.Failures = append(report.Failures, DocumentFailure{Document: f.Path, Err: f.Err.Error()})
	}
	report.Documents = len(docs)

	res := match.Run(docs, set.Enabled(), match.Options{
		MinStrength: r.cfg.Matcher.MinStrength,
	})
	report.Matches = len(res.Matches)
	report.SkippedRules = res.SkippedRules
	report.RulesFired = res.Fired
	for _, m := range res.Matches {
		switch {
		case m.Strength >= r.cfg.Matcher.StrongThreshold:
			report.Strong++
		case m.Strength >= r.cfg.Matcher.MediumThreshold:
			report.Medium++
		default:
			report.Weak++
		}
	}

	r.apply(ctx, cycleID.Int64(), docs, res.Matches, report)

	// An interrupted apply leaves fire counts that overstate what was
	// actually written, so interrupted runs record nothing and learn
	// nothing.
	if !report.Interrupted {
		if err := r.db.RecordFires(cycleID.Int64(), res.Fired); err != nil {
			log.Printf("cycle: record fires: %v", err)
		}
		r.learn(docs, set, report)
	}

	report.FinishedAt = time.Now().UTC()
	r.persistReport(cycleID.Int64(), report)
	return report, nil
}

// apply writes append-reference matches through the vault adapter.
// Cancellation is honored between documents, never mid-write. A failed
// document never aborts the cycle.
func (r *Runner) apply(ctx context.Context, cycleID int64, docs []vault.Document, matches []match.Match, report *Report) {
	byID := make(map[string]*vault.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	touched := make(map[string]bool)

	for _, m := range matches {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if m.Action != rules.ActionAppend {
			report.Suggested++
			continue
		}

		src, ok := byID[m.Source]
		if !ok {
			continue
		}
		added, err := r.vaults.AddReference(src, m.Target)
		if err != nil {
			log.Printf("cycle: apply %s -> %s: %v", m.Source, m.Target, err)
			report.Failures = append(report.Failures, DocumentFailure{Document: m.Source, Err: err.Error()})
			continue
		}
		if !added {
			report.AlreadyLinked++
			continue
		}

		report.Applied++
		touched[m.Source] = true
		// Log only after the write is persisted, so the outcome log
		// never records a reference that does not exist on disk.
		if err := r.db.AppendOutcome(cycleID, m.Rule, m.Source, m.Target); err != nil {
			log.Printf("cycle: outcome log: %v", err)
		}
	}

	for id := range touched {
		report.Touched = append(report.Touched, id)
	}
	sort.Strings(report.Touched)
}

// learn runs the read-side analytics and the optimizer, then persists
// the replacement rule collection.
func (r *Runner) learn(docs []vault.Document, set *rules.Set, report *Report) {
	if n, err := r.db.SweepRetained(r.cfg.Optimizer.RetentionCycles); err != nil {
		log.Printf("cycle: retention sweep: %v", err)
	} else if n > 0 {
		log.Printf("cycle: %d outcomes retained", n)
	}

	pairs := correlate.Pairs(docs, correlate.Options{
		MinJointSamples: r.cfg.Correlation.MinJointSamples,
		MinScore:        r.cfg.Correlation.MinScore,
		MaxPairs:        r.cfg.Correlation.MaxPairs,
	})

	stats, err := r.db.RuleStatsWindow(r.cfg.Optimizer.StatsWindow)
	if err != nil {
		log.Printf("cycle: rule stats: %v", err)
		stats = nil
	}

	optStats := make(optimize.Stats, len(stats))
	for name, s := range stats {
		optStats[name] = optimize.RuleStats{
			Fired:    s.Fired,
			Applied:  s.Applied,
			Retained: s.Retained,
			Reversed: s.Reversed,
		}
	}

	result := optimize.Run(set.Rules, optStats, pairs, optimize.Options{
		MaxDelta:           r.cfg.Optimizer.MaxDelta,
		PromoteRatio:       r.cfg.Optimizer.PromoteRatio,
		DemoteRatio:        r.cfg.Optimizer.DemoteRatio,
		MinDecisions:       r.cfg.Optimizer.MinDecisions,
		StrengthFloor:      r.cfg.Optimizer.StrengthFloor,
		SynthesisThreshold: r.cfg.Optimizer.SynthesisThreshold,
		SynthesisStrength:  r.cfg.Optimizer.SynthesisStrength,
	})

	report.Degraded = result.Degraded
	report.Promoted = result.Promoted
	report.Demoted = result.Demoted
	report.Disabled = result.Disabled
	report.Created = result.Created

	set.Rules = result.Rules
	if err := r.repo.Save(set); err != nil {
		log.Printf("cycle: persist rules: %v", err)
		report.Failures = append(report.Failures, DocumentFailure{Document: r.repo.Path(), Err: err.Error()})
	}
}

func (r *Runner) persistReport(cycleID int64, report *Report) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("cycle: marshal report: %v", err)
		return
	}
	if err := r.db.SaveReport(cycleID, report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli(), report.Interrupted, data); err != nil {
		log.Printf("cycle: save report: %v", err)
	}
}

// MarkOutcome records an operator decision on an applied match.
func (r *Runner) MarkOutcome(rule, source, target, status string) (bool, error) {
	return r.db.MarkOutcome(rule, source, target, status)
}
