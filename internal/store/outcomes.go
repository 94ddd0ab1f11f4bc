package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Outcome statuses.
const (
	StatusApplied  = "applied"  // reference written, fate undecided
	StatusRetained = "retained" // unreversed through the retention window
	StatusReversed = "reversed" // explicitly undone by an operator
)

// Outcome is one row of the append-only match outcome log.
type Outcome struct {
	ID         int64
	CycleID    int64
	Rule       string
	Source     string
	Target     string
	Status     string
	CreatedAt  int64
	ResolvedAt *int64
}

// RuleStats aggregates a rule's outcome history over a cycle window.
type RuleStats struct {
	Fired    int
	Applied  int
	Retained int
	Reversed int
}

// AppendOutcome records one applied match. Duplicate (cycle, rule,
// source, target) rows are ignored, keeping re-runs idempotent.
func (db *DB) AppendOutcome(cycleID int64, rule, source, target string) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO outcomes (cycle_id, rule, source, target, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cycleID, rule, source, target, StatusApplied, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

// MarkOutcome resolves the most recent matching outcome row as retained
// or reversed. Returns false if no applied row matched.
func (db *DB) MarkOutcome(rule, source, target, status string) (bool, error) {
	if status != StatusRetained && status != StatusReversed {
		return false, fmt.Errorf("invalid status %q", status)
	}
	res, err := db.Exec(`
		UPDATE outcomes SET status = ?, resolved_at = ?
		WHERE id = (
			SELECT id FROM outcomes
			WHERE rule = ? AND source = ? AND target = ? AND status = ?
			ORDER BY cycle_id DESC LIMIT 1
		)
	`, status, time.Now().UnixMilli(), rule, source, target, StatusApplied)
	if err != nil {
		return false, fmt.Errorf("mark outcome: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SweepRetained promotes applied outcomes to retained once at least
// retentionCycles further cycles have completed without a reversal.
// Returns the number of rows promoted.
func (db *DB) SweepRetained(retentionCycles int) (int, error) {
	cutoff, ok, err := db.cycleIDAtOffset(retentionCycles)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil // not enough history yet
	}

	res, err := db.Exec(`
		UPDATE outcomes SET status = ?, resolved_at = ?
		WHERE status = ? AND cycle_id <= ?
	`, StatusRetained, time.Now().UnixMilli(), StatusApplied, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep retained: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RuleStatsWindow aggregates per-rule fires and resolved outcomes over
// the most recent window of cycles. An empty map means no history: the
// optimizer treats that as degraded mode.
func (db *DB) RuleStatsWindow(window int) (map[string]RuleStats, error) {
	since, ok, err := db.cycleIDAtOffset(window)
	if err != nil {
		return nil, err
	}
	if !ok {
		since = 0 // fewer cycles than the window: use everything
	}

	stats := make(map[string]RuleStats)

	rows, err := db.Query(`
		SELECT rule, SUM(fires) FROM rule_fires WHERE cycle_id > ? GROUP BY rule
	`, since)
	if err != nil {
		return nil, fmt.Errorf("rule fires: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rule string
		var fires int
		if err := rows.Scan(&rule, &fires); err != nil {
			return nil, fmt.Errorf("scan fires: %w", err)
		}
		s := stats[rule]
		s.Fired = fires
		stats[rule] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rule fires rows: %w", err)
	}

	orows, err := db.Query(`
		SELECT rule, status, COUNT(*) FROM outcomes WHERE cycle_id > ? GROUP BY rule, status
	`, since)
	if err != nil {
		return nil, fmt.Errorf("outcome counts: %w", err)
	}
	defer orows.Close()
	for orows.Next() {
		var rule, status string
		var n int
		if err := orows.Scan(&rule, &status, &n); err != nil {
			return nil, fmt.Errorf("scan outcomes: %w", err)
		}
		s := stats[rule]
		switch status {
		case StatusApplied:
			s.Applied = n
		case StatusRetained:
			s.Retained = n
		case StatusReversed:
			s.Reversed = n
		}
		stats[rule] = s
	}
	if err := orows.Err(); err != nil {
		return nil, fmt.Errorf("outcome rows: %w", err)
	}

	return stats, nil
}

// RecordFires stores per-rule fired-match counts for one cycle.
func (db *DB) RecordFires(cycleID int64, fires map[string]int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin fires: %w", err)
	}
	for rule, n := range fires {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO rule_fires (cycle_id, rule, fires) VALUES (?, ?, ?)
		`, cycleID, rule, n); err != nil {
			tx.Rollback()
			return fmt.Errorf("record fires: %w", err)
		}
	}
	return tx.Commit()
}

// ListOutcomes returns the most recent outcome rows, newest first.
func (db *DB) ListOutcomes(limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, cycle_id, rule, source, target, status, created_at, resolved_at
		FROM outcomes ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var resolved sql.NullInt64
		if err := rows.Scan(&o.ID, &o.CycleID, &o.Rule, &o.Source, &o.Target, &o.Status, &o.CreatedAt, &resolved); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if resolved.Valid {
			o.ResolvedAt = &resolved.Int64
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// cycleIDAtOffset returns the cycle_id of the Nth most recent completed
// cycle (0 = latest). Interrupted cycles do not count: a run that was
// cancelled mid-way gives operators no chance to reverse anything. ok
// is false when fewer completed cycles exist.
func (db *DB) cycleIDAtOffset(offset int) (int64, bool, error) {
	var id int64
	err := db.QueryRow(`
		SELECT cycle_id FROM cycle_reports WHERE interrupted = 0
		ORDER BY cycle_id DESC LIMIT 1 OFFSET ?
	`, offset).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cycle at offset %d: %w", offset, err)
	}
	return id, true, nil
}
