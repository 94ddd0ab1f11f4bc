package store

import (
	"database/sql"
	"fmt"
)

// ReportRow is one persisted cycle report. Report is the JSON document
// assembled by the orchestrator; the store does not interpret it.
type ReportRow struct {
	ID          int64
	CycleID     int64
	StartedAt   int64
	FinishedAt  int64
	Interrupted bool
	Report      []byte
}

// SaveReport persists a cycle's structured report. Interrupted cycles
// are kept for inspection but excluded from retention accounting.
func (db *DB) SaveReport(cycleID, startedAt, finishedAt int64, interrupted bool, report []byte) error {
	flag := 0
	if interrupted {
		flag = 1
	}
	_, err := db.Exec(`
		INSERT INTO cycle_reports (cycle_id, started_at, finished_at, interrupted, report)
		VALUES (?, ?, ?, ?, ?)
	`, cycleID, startedAt, finishedAt, flag, string(report))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LatestReport returns the most recent cycle report, or nil when no
// cycle has completed yet.
func (db *DB) LatestReport() (*ReportRow, error) {
	var r ReportRow
	var report string
	var flag int
	err := db.QueryRow(`
		SELECT id, cycle_id, started_at, finished_at, interrupted, report
		FROM cycle_reports ORDER BY cycle_id DESC LIMIT 1
	`).Scan(&r.ID, &r.CycleID, &r.StartedAt, &r.FinishedAt, &flag, &report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	r.Interrupted = flag != 0
	r.Report = []byte(report)
	return &r, nil
}

// ListReports returns recent cycle reports, newest first.
func (db *DB) ListReports(limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, cycle_id, started_at, finished_at, interrupted, report
		FROM cycle_reports ORDER BY cycle_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		var report string
		var flag int
		if err := rows.Scan(&r.ID, &r.CycleID, &r.StartedAt, &r.FinishedAt, &flag, &report); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Interrupted = flag != 0
		r.Report = []byte(report)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CycleCount returns the number of completed (uninterrupted) cycles on
// record.
func (db *DB) CycleCount() (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM cycle_reports WHERE interrupted = 0").Scan(&n)
	return n, err
}
