package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "outcomes: append-only match outcome log",
		SQL: `
CREATE TABLE outcomes (
    id          INTEGER PRIMARY KEY,
    cycle_id    INTEGER NOT NULL,
    rule        TEXT NOT NULL,
    source      TEXT NOT NULL,
    target      TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'applied' CHECK (status IN ('applied', 'retained', 'reversed')),
    created_at  INTEGER NOT NULL,
    resolved_at INTEGER,

    UNIQUE (cycle_id, rule, source, target)
);

CREATE INDEX idx_outcomes_rule   ON outcomes(rule);
CREATE INDEX idx_outcomes_status ON outcomes(status);
CREATE INDEX idx_outcomes_cycle  ON outcomes(cycle_id);
`,
	},
	{
		Version:     2,
		Description: "cycle_reports: per-cycle structured report history",
		SQL: `
CREATE TABLE cycle_reports (
    id          INTEGER PRIMARY KEY,
    cycle_id    INTEGER NOT NULL UNIQUE,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    report      TEXT NOT NULL
);

CREATE INDEX idx_reports_cycle ON cycle_reports(cycle_id DESC);
`,
	},
	{
		Version:     3,
		Description: "rule_fires: per-cycle fired-match counts for demotion trends",
		SQL: `
CREATE TABLE rule_fires (
    cycle_id INTEGER NOT NULL,
    rule     TEXT NOT NULL,
    fires    INTEGER NOT NULL,

    PRIMARY KEY (cycle_id, rule)
);
`,
	},
	{
		Version:     4,
		Description: "cycle_reports: keep interrupted cycles out of retention accounting",
		SQL: `
ALTER TABLE cycle_reports ADD COLUMN interrupted INTEGER NOT NULL DEFAULT 0;
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
